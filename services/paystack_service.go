package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const paystackBaseURL = "https://api.paystack.co"

// PaystackService wraps the two Paystack calls the payment flow needs:
// initializing a transaction and verifying one. Amounts are pesewas
// everywhere.
type PaystackService struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewPaystackService(secretKey string) *PaystackService {
	return &PaystackService{
		baseURL:   paystackBaseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewPaystackServiceWithBaseURL is used by tests to point the client at a
// stub server.
func NewPaystackServiceWithBaseURL(secretKey, baseURL string) *PaystackService {
	s := NewPaystackService(secretKey)
	s.baseURL = baseURL
	return s
}

type InitializeTransactionRequest struct {
	Email       string         `json:"email"`
	Amount      int            `json:"amount"` // pesewas
	Currency    string         `json:"currency"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type InitializeTransactionData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type TransactionCustomer struct {
	Email string `json:"email"`
}

type TransactionData struct {
	Reference string              `json:"reference"`
	Status    string              `json:"status"` // success, failed, abandoned
	Amount    int                 `json:"amount"`
	Currency  string              `json:"currency"`
	PaidAt    string              `json:"paid_at"`
	Metadata  map[string]any      `json:"metadata"`
	Customer  TransactionCustomer `json:"customer"`
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeTransaction creates a transaction on Paystack and returns the
// hosted checkout URL plus the provider reference.
func (s *PaystackService) InitializeTransaction(ctx context.Context, req *InitializeTransactionRequest) (*InitializeTransactionData, error) {
	if s.secretKey == "" {
		return nil, fmt.Errorf("paystack secret key is not configured")
	}
	if req.Currency == "" {
		req.Currency = "GHS"
	}

	var data InitializeTransactionData
	if err := s.do(ctx, http.MethodPost, "/transaction/initialize", req, &data); err != nil {
		return nil, fmt.Errorf("failed to initialize transaction: %w", err)
	}
	return &data, nil
}

// VerifyTransaction fetches the authoritative state of a transaction from
// Paystack. Both the browser callback and the webhook re-verify through this
// call rather than trusting what arrived on the wire.
func (s *PaystackService) VerifyTransaction(ctx context.Context, reference string) (*TransactionData, error) {
	if s.secretKey == "" {
		return nil, fmt.Errorf("paystack secret key is not configured")
	}

	var data TransactionData
	if err := s.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		return nil, fmt.Errorf("failed to verify transaction %s: %w", reference, err)
	}
	return &data, nil
}

func (s *PaystackService) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to paystack failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read paystack response: %w", err)
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to parse paystack response: %w", err)
	}

	if resp.StatusCode >= 400 || !envelope.Status {
		return fmt.Errorf("paystack returned %d: %s", resp.StatusCode, envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to parse paystack data: %w", err)
		}
	}
	return nil
}
