package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uniLodgeAPI/internal/cache"
	"uniLodgeAPI/internal/payment"
	"uniLodgeAPI/internal/subscription"
	"uniLodgeAPI/middleware"
	"uniLodgeAPI/services"
)

const testWebhookSecret = "sk_test_secret"

type fakePayments struct {
	byID         map[string]*payment.Payment
	byRef        map[string]*payment.Payment
	refWrites    map[string]string
	statusWrites map[string][]string
}

func newFakePayments(payments ...*payment.Payment) *fakePayments {
	f := &fakePayments{
		byID:         map[string]*payment.Payment{},
		byRef:        map[string]*payment.Payment{},
		refWrites:    map[string]string{},
		statusWrites: map[string][]string{},
	}
	for _, p := range payments {
		f.byID[p.ID] = p
		if p.ProviderRef != nil {
			f.byRef[*p.ProviderRef] = p
		}
	}
	return f
}

func (f *fakePayments) Create(_ context.Context, subscriptionID, userID string, amount int, promoCode *string) (*payment.Payment, error) {
	p := &payment.Payment{
		ID:             "pay_new",
		SubscriptionID: subscriptionID,
		UserID:         userID,
		Amount:         amount,
		Status:         payment.StatusPending,
		PromoCode:      promoCode,
	}
	f.byID[p.ID] = p
	return p, nil
}

func (f *fakePayments) SetProviderRef(_ context.Context, id, reference string) error {
	f.refWrites[id] = reference
	if p, ok := f.byID[id]; ok {
		p.ProviderRef = &reference
		f.byRef[reference] = p
	}
	return nil
}

func (f *fakePayments) GetByID(_ context.Context, id string) (*payment.Payment, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, services.ErrPaymentNotFound
}

func (f *fakePayments) GetByProviderRef(_ context.Context, reference string) (*payment.Payment, error) {
	if p, ok := f.byRef[reference]; ok {
		return p, nil
	}
	return nil, services.ErrPaymentNotFound
}

func (f *fakePayments) UpdateStatus(_ context.Context, id, status string) error {
	f.statusWrites[id] = append(f.statusWrites[id], status)
	if p, ok := f.byID[id]; ok {
		p.Status = status
	}
	return nil
}

type fakeActivator struct {
	subs          map[string]*subscription.Subscription
	elevatedErr   error
	elevatedCalls int
	scopedCalls   int
}

func (f *fakeActivator) GetByID(_ context.Context, id string) (*subscription.Subscription, error) {
	if s, ok := f.subs[id]; ok {
		return s, nil
	}
	return nil, services.ErrSubscriptionNotFound
}

func (f *fakeActivator) activate(id string) (*subscription.Subscription, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, services.ErrSubscriptionNotFound
	}
	s.Status = subscription.StatusActive
	if s.ExpiresAt == nil {
		expiry := time.Now().Add(30 * 24 * time.Hour)
		s.ExpiresAt = &expiry
	}
	return s, nil
}

func (f *fakeActivator) Activate(_ context.Context, id string) (*subscription.Subscription, error) {
	f.elevatedCalls++
	if f.elevatedErr != nil {
		return nil, f.elevatedErr
	}
	return f.activate(id)
}

func (f *fakeActivator) ActivateForUser(_ context.Context, id, _ string) (*subscription.Subscription, error) {
	f.scopedCalls++
	return f.activate(id)
}

type fakeGateway struct {
	tx          *services.TransactionData
	verifyErr   error
	verifyCalls int
}

func (f *fakeGateway) InitializeTransaction(_ context.Context, _ *services.InitializeTransactionRequest) (*services.InitializeTransactionData, error) {
	return &services.InitializeTransactionData{
		AuthorizationURL: "https://checkout.paystack.com/abc",
		Reference:        "ref_new",
	}, nil
}

func (f *fakeGateway) VerifyTransaction(_ context.Context, _ string) (*services.TransactionData, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.tx, nil
}

type gateSubSource struct{}

func (gateSubSource) LatestActiveForClerkID(_ context.Context, _ string) (*subscription.Subscription, error) {
	return nil, services.ErrSubscriptionNotFound
}

type gateRoleSource struct{}

func (gateRoleSource) IsAdmin(_ context.Context, _ string) (bool, error) { return false, nil }

func newTestPaymentHandler(payments PaymentStore, subs SubscriptionActivator, gateway PaymentGateway) *PaymentHandler {
	gate := middleware.NewAccessGate(gateSubSource{}, gateRoleSource{},
		cache.New[*subscription.Subscription](30*time.Second),
		cache.New[bool](5*time.Minute))
	return NewPaymentHandler(payments, subs, gateway, nil, nil, nil, gate, testWebhookSecret, "https://unilodge.app/payments/callback")
}

func pendingPayment(ref string) *payment.Payment {
	p := &payment.Payment{
		ID:             "pay_1",
		SubscriptionID: "sub_1",
		UserID:         "user_1",
		Amount:         1500,
		Status:         payment.StatusPending,
	}
	if ref != "" {
		p.ProviderRef = &ref
	}
	return p
}

func pendingSubscription() *subscription.Subscription {
	return &subscription.Subscription{
		ID:       "sub_1",
		UserID:   "user_1",
		PlanCode: "monthly",
		Status:   subscription.StatusPending,
	}
}

func signBody(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCallbackWithoutReferenceRedirectsWithoutMutation(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{}
	h := newTestPaymentHandler(payments, activator, gateway)

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/payments/callback", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/subscribe?error=no_reference", rec.Header().Get("Location"))
	assert.Zero(t, gateway.verifyCalls)
	assert.Empty(t, payments.statusWrites)
	assert.Zero(t, activator.elevatedCalls)
}

func TestCallbackVerificationFailureRedirects(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{verifyErr: assert.AnError}
	h := newTestPaymentHandler(payments, activator, gateway)

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/payments/callback?reference=ref_1", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/subscribe?error=verification_failed", rec.Header().Get("Location"))
	assert.Empty(t, payments.statusWrites)
}

func TestCallbackSuccessActivatesAndRedirects(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{tx: &services.TransactionData{Reference: "ref_1", Status: "success", Amount: 1500}}
	h := newTestPaymentHandler(payments, activator, gateway)

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/payments/callback?reference=ref_1", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard?payment=success", rec.Header().Get("Location"))
	assert.Equal(t, []string{payment.StatusSuccess}, payments.statusWrites["pay_1"])
	assert.Equal(t, 1, activator.elevatedCalls)
	assert.Zero(t, activator.scopedCalls)
	assert.Equal(t, subscription.StatusActive, activator.subs["sub_1"].Status)
}

func TestCallbackAcceptsTrxrefAlias(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{tx: &services.TransactionData{Reference: "ref_1", Status: "success"}}
	h := newTestPaymentHandler(payments, activator, gateway)

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/payments/callback?trxref=ref_1", nil))

	assert.Equal(t, "/dashboard?payment=success", rec.Header().Get("Location"))
}

func TestCallbackMetadataFallbackBackfillsReference(t *testing.T) {
	// Payment row never got its provider reference stored.
	payments := newFakePayments(pendingPayment(""))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{tx: &services.TransactionData{
		Reference: "ref_1",
		Status:    "success",
		Metadata:  map[string]any{"payment_id": "pay_1"},
	}}
	h := newTestPaymentHandler(payments, activator, gateway)

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/payments/callback?reference=ref_1", nil))

	assert.Equal(t, "/dashboard?payment=success", rec.Header().Get("Location"))
	assert.Equal(t, "ref_1", payments.refWrites["pay_1"])
	assert.Equal(t, subscription.StatusActive, activator.subs["sub_1"].Status)
}

func TestCallbackUnknownPaymentRedirects(t *testing.T) {
	payments := newFakePayments()
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{}}
	gateway := &fakeGateway{tx: &services.TransactionData{Reference: "ref_1", Status: "success"}}
	h := newTestPaymentHandler(payments, activator, gateway)

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/payments/callback?reference=ref_1", nil))

	assert.Equal(t, "/subscribe?error=payment_not_found", rec.Header().Get("Location"))
}

func TestCallbackFailedChargeMarksPaymentFailed(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{tx: &services.TransactionData{Reference: "ref_1", Status: "failed"}}
	h := newTestPaymentHandler(payments, activator, gateway)

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/payments/callback?reference=ref_1", nil))

	assert.Equal(t, "/subscribe?error=payment_failed", rec.Header().Get("Location"))
	assert.Equal(t, []string{payment.StatusFailed}, payments.statusWrites["pay_1"])
	assert.Zero(t, activator.elevatedCalls)
}

func TestCallbackAbandonedChargeLeavesPaymentAlone(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{tx: &services.TransactionData{Reference: "ref_1", Status: "abandoned"}}
	h := newTestPaymentHandler(payments, activator, gateway)

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/payments/callback?reference=ref_1", nil))

	assert.Equal(t, "/subscribe?error=payment_not_verified", rec.Header().Get("Location"))
	assert.Empty(t, payments.statusWrites)
}

func TestCallbackFallsBackToScopedActivation(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{
		subs:        map[string]*subscription.Subscription{"sub_1": pendingSubscription()},
		elevatedErr: assert.AnError,
	}
	gateway := &fakeGateway{tx: &services.TransactionData{Reference: "ref_1", Status: "success"}}
	h := newTestPaymentHandler(payments, activator, gateway)

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/payments/callback?reference=ref_1", nil))

	assert.Equal(t, "/dashboard?payment=success", rec.Header().Get("Location"))
	assert.Equal(t, 1, activator.elevatedCalls)
	assert.Equal(t, 1, activator.scopedCalls)
	assert.Equal(t, subscription.StatusActive, activator.subs["sub_1"].Status)
}

func webhookRequest(body []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("x-paystack-signature", signature)
	}
	return req
}

func TestWebhookMissingSignatureRejected(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{}
	h := newTestPaymentHandler(payments, activator, gateway)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)

	rec := httptest.NewRecorder()
	h.HandlePaystackWebhook(rec, webhookRequest(body, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, payments.statusWrites)
	assert.Zero(t, gateway.verifyCalls)
}

func TestWebhookBadSignatureRejected(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{}
	h := newTestPaymentHandler(payments, activator, gateway)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)

	rec := httptest.NewRecorder()
	h.HandlePaystackWebhook(rec, webhookRequest(body, "deadbeef"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, payments.statusWrites)
	assert.Zero(t, gateway.verifyCalls)
}

func TestWebhookChargeSuccessActivatesElevatedOnly(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{tx: &services.TransactionData{Reference: "ref_1", Status: "success", Amount: 1500}}
	h := newTestPaymentHandler(payments, activator, gateway)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)

	rec := httptest.NewRecorder()
	h.HandlePaystackWebhook(rec, webhookRequest(body, signBody(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
	assert.Equal(t, 1, gateway.verifyCalls)
	assert.Equal(t, []string{payment.StatusSuccess}, payments.statusWrites["pay_1"])
	assert.Equal(t, 1, activator.elevatedCalls)
	assert.Zero(t, activator.scopedCalls)
}

func TestWebhookDuplicateDeliveryConverges(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{tx: &services.TransactionData{Reference: "ref_1", Status: "success"}}
	h := newTestPaymentHandler(payments, activator, gateway)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)

	rec := httptest.NewRecorder()
	h.HandlePaystackWebhook(rec, webhookRequest(body, signBody(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	firstExpiry := activator.subs["sub_1"].ExpiresAt
	require.NotNil(t, firstExpiry)

	rec = httptest.NewRecorder()
	h.HandlePaystackWebhook(rec, webhookRequest(body, signBody(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, subscription.StatusActive, activator.subs["sub_1"].Status)
	assert.Equal(t, firstExpiry, activator.subs["sub_1"].ExpiresAt)
	assert.Equal(t, []string{payment.StatusSuccess, payment.StatusSuccess}, payments.statusWrites["pay_1"])
}

func TestWebhookChargeFailedMarksPayment(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{}
	h := newTestPaymentHandler(payments, activator, gateway)

	body := []byte(`{"event":"charge.failed","data":{"reference":"ref_1"}}`)

	rec := httptest.NewRecorder()
	h.HandlePaystackWebhook(rec, webhookRequest(body, signBody(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{payment.StatusFailed}, payments.statusWrites["pay_1"])
	assert.Zero(t, activator.elevatedCalls)
	assert.Equal(t, subscription.StatusPending, activator.subs["sub_1"].Status)
}

func TestWebhookUnknownEventAcknowledged(t *testing.T) {
	payments := newFakePayments()
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{}}
	gateway := &fakeGateway{}
	h := newTestPaymentHandler(payments, activator, gateway)

	body := []byte(`{"event":"transfer.success","data":{"reference":"ref_x"}}`)

	rec := httptest.NewRecorder()
	h.HandlePaystackWebhook(rec, webhookRequest(body, signBody(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
}

func TestWebhookChargeSuccessGatewayDisagrees(t *testing.T) {
	payments := newFakePayments(pendingPayment("ref_1"))
	activator := &fakeActivator{subs: map[string]*subscription.Subscription{"sub_1": pendingSubscription()}}
	gateway := &fakeGateway{tx: &services.TransactionData{Reference: "ref_1", Status: "abandoned"}}
	h := newTestPaymentHandler(payments, activator, gateway)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)

	rec := httptest.NewRecorder()
	h.HandlePaystackWebhook(rec, webhookRequest(body, signBody(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, payments.statusWrites)
	assert.Zero(t, activator.elevatedCalls)
}
