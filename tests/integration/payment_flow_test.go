package integration

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uniLodgeAPI/handlers"
	"uniLodgeAPI/internal/cache"
	"uniLodgeAPI/internal/payment"
	"uniLodgeAPI/internal/subscription"
	"uniLodgeAPI/internal/user"
	"uniLodgeAPI/middleware"
	"uniLodgeAPI/services"
	"uniLodgeAPI/tests/helpers"
)

const testPaystackSecret = "sk_test_integration"

type paymentFixture struct {
	subscriptionService *services.SubscriptionService
	paymentService      *services.PaymentService
	handler             *handlers.PaymentHandler
	user                *user.User
	subscription        *subscription.Subscription
	payment             *payment.Payment
	reference           string
}

// setupPaymentFixture seeds a user, a pending subscription and a pending
// payment with a stored provider reference, and wires a PaymentHandler
// against a stub Paystack server that verifies the reference as successful.
func setupPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	pool := helpers.SetupTestDB(t)
	t.Cleanup(func() { helpers.CleanupTestDB(t, pool) })

	userService := services.NewUserService(pool)
	subscriptionService := services.NewSubscriptionService(pool)
	paymentService := services.NewPaymentService(pool)
	promoService := services.NewPromoService(pool)

	ctx := context.Background()
	stamp := time.Now().Format("20060102150405.000")

	owner, err := userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:  "user_pay_" + stamp,
		Email:    "test.payer@example.com",
		Username: "testpayer" + stamp,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		userService.DeleteUserByClerkID(context.Background(), owner.ClerkID)
	})

	sub, err := subscriptionService.Create(ctx, owner.ID, "monthly")
	require.NoError(t, err)

	pay, err := paymentService.Create(ctx, sub.ID, owner.ID, 1500, nil)
	require.NoError(t, err)

	reference := "ref_test_" + stamp
	require.NoError(t, paymentService.SetProviderRef(ctx, pay.ID, reference))

	gatewayServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(helpers.MockPaystackVerifyResponse(reference, "success", 1500, pay.ID))
	}))
	t.Cleanup(gatewayServer.Close)

	gate := middleware.NewAccessGate(subscriptionService, userService,
		cache.New[*subscription.Subscription](30*time.Second),
		cache.New[bool](5*time.Minute))

	handler := handlers.NewPaymentHandler(
		paymentService,
		subscriptionService,
		services.NewPaystackServiceWithBaseURL(testPaystackSecret, gatewayServer.URL),
		promoService,
		userService,
		nil,
		gate,
		testPaystackSecret,
		"http://localhost/payments/callback",
	)

	return &paymentFixture{
		subscriptionService: subscriptionService,
		paymentService:      paymentService,
		handler:             handler,
		user:                owner,
		subscription:        sub,
		payment:             pay,
		reference:           reference,
	}
}

func TestPaystackWebhookActivatesSubscription(t *testing.T) {
	f := setupPaymentFixture(t)
	ctx := context.Background()

	body := helpers.MockPaystackWebhookPayload("charge.success", f.reference)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", helpers.SignPaystackPayload(body, testPaystackSecret))

	rr := httptest.NewRecorder()
	f.handler.HandlePaystackWebhook(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	sub, err := f.subscriptionService.GetByID(ctx, f.subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	require.NotNil(t, sub.ExpiresAt)
	assert.True(t, sub.ExpiresAt.After(time.Now()), "Expiry should be in the future")
	assert.True(t, sub.Entitles(time.Now()))

	pay, err := f.paymentService.GetByID(ctx, f.payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, pay.Status)
}

func TestPaystackWebhookDuplicateDeliveryKeepsExpiry(t *testing.T) {
	f := setupPaymentFixture(t)
	ctx := context.Background()

	body := helpers.MockPaystackWebhookPayload("charge.success", f.reference)
	deliver := func() int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
		req.Header.Set("x-paystack-signature", helpers.SignPaystackPayload(body, testPaystackSecret))
		rr := httptest.NewRecorder()
		f.handler.HandlePaystackWebhook(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, deliver())
	first, err := f.subscriptionService.GetByID(ctx, f.subscription.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ExpiresAt)

	require.Equal(t, http.StatusOK, deliver())
	second, err := f.subscriptionService.GetByID(ctx, f.subscription.ID)
	require.NoError(t, err)
	require.NotNil(t, second.ExpiresAt)

	assert.Equal(t, subscription.StatusActive, second.Status)
	assert.True(t, first.ExpiresAt.Equal(*second.ExpiresAt), "Duplicate delivery must not shift the expiry window")
}

func TestPaystackWebhookRejectsBadSignature(t *testing.T) {
	f := setupPaymentFixture(t)
	ctx := context.Background()

	body := helpers.MockPaystackWebhookPayload("charge.success", f.reference)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", "0000")

	rr := httptest.NewRecorder()
	f.handler.HandlePaystackWebhook(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	sub, err := f.subscriptionService.GetByID(ctx, f.subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPending, sub.Status, "Rejected webhook must not mutate state")
}

func TestCallbackActivatesSubscription(t *testing.T) {
	f := setupPaymentFixture(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/payments/callback?reference="+f.reference, nil)
	rr := httptest.NewRecorder()
	f.handler.HandleCallback(rr, req)

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/dashboard?payment=success", rr.Header().Get("Location"))

	sub, err := f.subscriptionService.GetByID(ctx, f.subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, sub.Status)
}

func TestCallbackThenWebhookConverges(t *testing.T) {
	f := setupPaymentFixture(t)
	ctx := context.Background()

	// Browser lands first
	req := httptest.NewRequest(http.MethodGet, "/payments/callback?reference="+f.reference, nil)
	rr := httptest.NewRecorder()
	f.handler.HandleCallback(rr, req)
	require.Equal(t, http.StatusFound, rr.Code)

	afterCallback, err := f.subscriptionService.GetByID(ctx, f.subscription.ID)
	require.NoError(t, err)
	require.NotNil(t, afterCallback.ExpiresAt)

	// Webhook retries later
	body := helpers.MockPaystackWebhookPayload("charge.success", f.reference)
	whReq := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	whReq.Header.Set("x-paystack-signature", helpers.SignPaystackPayload(body, testPaystackSecret))
	whRR := httptest.NewRecorder()
	f.handler.HandlePaystackWebhook(whRR, whReq)
	require.Equal(t, http.StatusOK, whRR.Code)

	afterWebhook, err := f.subscriptionService.GetByID(ctx, f.subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, afterWebhook.Status)
	assert.True(t, afterCallback.ExpiresAt.Equal(*afterWebhook.ExpiresAt))
}
