package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"uniLodgeAPI/internal/payment"
	"uniLodgeAPI/internal/promo"
	"uniLodgeAPI/internal/subscription"
	"uniLodgeAPI/internal/user"
	"uniLodgeAPI/middleware"
	"uniLodgeAPI/services"
)

// PaymentStore is the slice of PaymentService the reconciliation flow needs.
type PaymentStore interface {
	Create(ctx context.Context, subscriptionID, userID string, amount int, promoCode *string) (*payment.Payment, error)
	SetProviderRef(ctx context.Context, id, reference string) error
	GetByID(ctx context.Context, id string) (*payment.Payment, error)
	GetByProviderRef(ctx context.Context, reference string) (*payment.Payment, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

type SubscriptionActivator interface {
	GetByID(ctx context.Context, id string) (*subscription.Subscription, error)
	Activate(ctx context.Context, id string) (*subscription.Subscription, error)
	ActivateForUser(ctx context.Context, id, userID string) (*subscription.Subscription, error)
}

type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req *services.InitializeTransactionRequest) (*services.InitializeTransactionData, error)
	VerifyTransaction(ctx context.Context, reference string) (*services.TransactionData, error)
}

type PromoRedeemer interface {
	ApplyToAmount(ctx context.Context, code string, amount int) (int, *promo.PromoCode, error)
	RecordUsage(ctx context.Context, promoID, paymentID, subscriptionID string) error
}

type ProfileSource interface {
	GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error)
}

type SuccessNotifier interface {
	SendPaymentSuccess(ctx context.Context, userID, planCode string)
}

type PaymentHandler struct {
	payments       PaymentStore
	subscriptions  SubscriptionActivator
	gateway        PaymentGateway
	promos         PromoRedeemer
	profiles       ProfileSource
	notifier       SuccessNotifier
	gate           *middleware.AccessGate
	webhookSecret  string
	callbackURL    string
	resolveSession middleware.SessionResolver
}

func NewPaymentHandler(payments PaymentStore, subscriptions SubscriptionActivator, gateway PaymentGateway,
	promos PromoRedeemer, profiles ProfileSource, notifier SuccessNotifier,
	gate *middleware.AccessGate, webhookSecret, callbackURL string) *PaymentHandler {

	return &PaymentHandler{
		payments:       payments,
		subscriptions:  subscriptions,
		gateway:        gateway,
		promos:         promos,
		profiles:       profiles,
		notifier:       notifier,
		gate:           gate,
		webhookSecret:  webhookSecret,
		callbackURL:    callbackURL,
		resolveSession: middleware.ResolveSession,
	}
}

// InitializePayment opens a pending payment against a subscription and hands
// the client Paystack's hosted checkout URL.
func (h *PaymentHandler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req payment.InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SubscriptionID == "" {
		respondWithError(w, http.StatusBadRequest, "subscription_id is required")
		return
	}

	profile, err := h.profiles.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	sub, err := h.subscriptions.GetByID(ctx, req.SubscriptionID)
	if err != nil {
		if errors.Is(err, services.ErrSubscriptionNotFound) {
			respondWithError(w, http.StatusNotFound, "Subscription not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load subscription")
		return
	}
	if sub.UserID != profile.ID {
		respondWithError(w, http.StatusForbidden, "Subscription does not belong to this user")
		return
	}

	plan := subscription.PlanByCode(sub.PlanCode)
	if plan == nil {
		respondWithError(w, http.StatusInternalServerError, "Subscription has an unknown plan")
		return
	}

	// The plan price is authoritative. A client-supplied amount is accepted
	// only when it agrees.
	amount := plan.Price
	if req.Amount != 0 && req.Amount != plan.Price {
		respondWithError(w, http.StatusBadRequest, "Amount does not match the plan price")
		return
	}

	var promoCode *string
	var appliedPromo *promo.PromoCode
	if req.PromoCode != "" {
		discounted, p, err := h.promos.ApplyToAmount(ctx, req.PromoCode, amount)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, promoErrorMessage(err))
			return
		}
		amount = discounted
		appliedPromo = p
		promoCode = &p.Code
	}

	pay, err := h.payments.Create(ctx, sub.ID, profile.ID, amount, promoCode)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to create payment")
		return
	}

	email := req.Email
	if email == "" {
		email = profile.Email
	}

	init, err := h.gateway.InitializeTransaction(ctx, &services.InitializeTransactionRequest{
		Email:       email,
		Amount:      amount,
		CallbackURL: h.callbackURL,
		Metadata: map[string]any{
			"payment_id":      pay.ID,
			"subscription_id": sub.ID,
			"user_id":         profile.ID,
			"plan_code":       sub.PlanCode,
			"phone":           req.Phone,
		},
	})
	if err != nil {
		log.Printf("InitializePayment: gateway initialization failed for payment %s: %v", pay.ID, err)
		h.payments.UpdateStatus(ctx, pay.ID, payment.StatusFailed)
		respondWithError(w, http.StatusBadGateway, "Failed to initialize payment with provider")
		return
	}

	if err := h.payments.SetProviderRef(ctx, pay.ID, init.Reference); err != nil {
		log.Printf("InitializePayment: failed to store reference %s on payment %s: %v", init.Reference, pay.ID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to record payment reference")
		return
	}
	pay.ProviderRef = &init.Reference

	if appliedPromo != nil {
		if err := h.promos.RecordUsage(ctx, appliedPromo.ID, pay.ID, sub.ID); err != nil {
			log.Printf("InitializePayment: failed to record promo usage for %s: %v", appliedPromo.Code, err)
		}
	}

	respondWithJSON(w, http.StatusCreated, payment.InitializeResponse{
		Payment:          pay,
		AuthorizationURL: init.AuthorizationURL,
	})
}

// HandleCallback is where Paystack's hosted checkout sends the browser back.
// It never renders: every outcome is a redirect, success to the dashboard
// and everything else to the paywall with an error code the frontend can
// display. The browser may arrive without a session cookie, so the
// subscription is activated through the elevated path first and the
// user-scoped path only as fallback.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	reference := r.URL.Query().Get("reference")
	if reference == "" {
		reference = r.URL.Query().Get("trxref")
	}
	if reference == "" {
		redirectCallbackError(w, r, payment.ErrCodeNoReference)
		return
	}

	tx, err := h.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		log.Printf("Callback: verification failed for reference %s: %v", reference, err)
		redirectCallbackError(w, r, payment.ErrCodeVerificationFailed)
		return
	}

	pay, err := h.locatePayment(ctx, reference, tx.Metadata)
	if err != nil {
		log.Printf("Callback: no payment found for reference %s: %v", reference, err)
		redirectCallbackError(w, r, payment.ErrCodePaymentNotFound)
		return
	}

	switch tx.Status {
	case "success":
		// fall through below
	case "failed":
		if err := h.payments.UpdateStatus(ctx, pay.ID, payment.StatusFailed); err != nil {
			log.Printf("Callback: failed to mark payment %s failed: %v", pay.ID, err)
		}
		redirectCallbackError(w, r, payment.ErrCodePaymentFailed)
		return
	default:
		// abandoned, pending, anything in flight. Leave the row alone.
		redirectCallbackError(w, r, payment.ErrCodePaymentNotVerified)
		return
	}

	if err := h.payments.UpdateStatus(ctx, pay.ID, payment.StatusSuccess); err != nil {
		log.Printf("Callback: failed to mark payment %s successful: %v", pay.ID, err)
		redirectCallbackError(w, r, payment.ErrCodeCallbackError)
		return
	}

	sub, err := h.subscriptions.Activate(ctx, pay.SubscriptionID)
	if err != nil {
		log.Printf("Callback: elevated activation failed for subscription %s, trying scoped: %v", pay.SubscriptionID, err)
		sub, err = h.subscriptions.ActivateForUser(ctx, pay.SubscriptionID, pay.UserID)
		if err != nil {
			log.Printf("Callback: activation failed for payment %s subscription %s reference %s: %v",
				pay.ID, pay.SubscriptionID, reference, err)
			redirectCallbackError(w, r, payment.ErrCodeCallbackError)
			return
		}
	}

	if h.notifier != nil {
		h.notifier.SendPaymentSuccess(ctx, pay.UserID, sub.PlanCode)
	}
	if session, ok := h.resolveSession(r); ok {
		h.gate.InvalidateSubscription(session.ClerkID)
	}

	http.Redirect(w, r, "/dashboard?payment=success", http.StatusFound)
}

// HandlePaystackWebhook processes server-to-server events from Paystack. The
// signature is checked against the raw body before anything is parsed.
// Recognized events are always acknowledged with 200 even when downstream
// processing fails, since Paystack retries on anything else and the retry
// would hit the same failure.
func (h *PaymentHandler) HandlePaystackWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if h.webhookSecret == "" {
		log.Println("Webhook: PAYSTACK_SECRET_KEY is not set")
		respondWithError(w, http.StatusInternalServerError, "Webhook is not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if !verifyPaystackSignature(body, r.Header.Get("x-paystack-signature"), h.webhookSecret) {
		log.Println("Webhook: invalid paystack signature")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	log.Printf("Webhook: received paystack event %s (reference %s)", event.Event, event.Data.Reference)

	switch event.Event {
	case "charge.success":
		h.handleChargeSuccess(ctx, event.Data.Reference)
	case "charge.failed":
		h.handleChargeFailed(ctx, event.Data.Reference)
	default:
		log.Printf("Webhook: ignoring event type %s", event.Event)
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// handleChargeSuccess re-verifies with the gateway rather than trusting the
// webhook payload, then activates through the elevated path. There is no
// user-scoped fallback here: a webhook carries no session, and if the
// elevated write fails the scoped one would too.
func (h *PaymentHandler) handleChargeSuccess(ctx context.Context, reference string) {
	tx, err := h.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		log.Printf("Webhook: verification failed for reference %s: %v", reference, err)
		return
	}
	if tx.Status != "success" {
		log.Printf("Webhook: charge.success for reference %s but gateway says %q, ignoring", reference, tx.Status)
		return
	}

	pay, err := h.locatePayment(ctx, reference, tx.Metadata)
	if err != nil {
		log.Printf("Webhook: no payment found for reference %s: %v", reference, err)
		return
	}

	if err := h.payments.UpdateStatus(ctx, pay.ID, payment.StatusSuccess); err != nil {
		log.Printf("Webhook: failed to mark payment %s successful (subscription %s, reference %s): %v",
			pay.ID, pay.SubscriptionID, reference, err)
		return
	}

	sub, err := h.subscriptions.Activate(ctx, pay.SubscriptionID)
	if err != nil {
		log.Printf("Webhook: activation failed for payment %s subscription %s reference %s: %v",
			pay.ID, pay.SubscriptionID, reference, err)
		return
	}

	if h.notifier != nil {
		h.notifier.SendPaymentSuccess(ctx, pay.UserID, sub.PlanCode)
	}
}

func (h *PaymentHandler) handleChargeFailed(ctx context.Context, reference string) {
	pay, err := h.payments.GetByProviderRef(ctx, reference)
	if err != nil {
		log.Printf("Webhook: no payment found for failed charge %s: %v", reference, err)
		return
	}
	if err := h.payments.UpdateStatus(ctx, pay.ID, payment.StatusFailed); err != nil {
		log.Printf("Webhook: failed to mark payment %s failed: %v", pay.ID, err)
	}
}

// locatePayment tries the provider reference first, then falls back to the
// payment_id the initializer stashed in the transaction metadata. A metadata
// hit backfills the reference onto the row so the next lookup takes the
// fast path.
func (h *PaymentHandler) locatePayment(ctx context.Context, reference string, metadata map[string]any) (*payment.Payment, error) {
	pay, err := h.payments.GetByProviderRef(ctx, reference)
	if err == nil {
		return pay, nil
	}
	if !errors.Is(err, services.ErrPaymentNotFound) {
		return nil, err
	}

	paymentID, _ := metadata["payment_id"].(string)
	if paymentID == "" {
		return nil, services.ErrPaymentNotFound
	}

	pay, err = h.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if pay.ProviderRef == nil || *pay.ProviderRef != reference {
		if err := h.payments.SetProviderRef(ctx, pay.ID, reference); err != nil {
			log.Printf("locatePayment: failed to backfill reference %s onto payment %s: %v", reference, pay.ID, err)
		} else {
			pay.ProviderRef = &reference
		}
	}
	return pay, nil
}

func verifyPaystackSignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func redirectCallbackError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/subscribe?error="+code, http.StatusFound)
}

func promoErrorMessage(err error) string {
	switch {
	case errors.Is(err, promo.ErrNotFound):
		return "Promo code not found"
	case errors.Is(err, promo.ErrInactive):
		return "Promo code is no longer active"
	case errors.Is(err, promo.ErrNotInWindow):
		return "Promo code is not valid yet"
	case errors.Is(err, promo.ErrExhausted):
		return "Promo code has been fully redeemed"
	default:
		return "Invalid promo code"
	}
}
