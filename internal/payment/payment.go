package payment

import "time"

const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Callback error codes the browser is redirected with. The callback route
// never surfaces a raw error page; these land on /subscribe?error=<code>.
const (
	ErrCodeNoReference        = "no_reference"
	ErrCodeVerificationFailed = "verification_failed"
	ErrCodePaymentNotFound    = "payment_not_found"
	ErrCodePaymentNotVerified = "payment_not_verified"
	ErrCodePaymentFailed      = "payment_failed"
	ErrCodeCallbackError      = "callback_error"
)

type Payment struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscriptionId"`
	UserID         string    `json:"userId"`
	Amount         int       `json:"amount"` // pesewas
	Status         string    `json:"status"`
	ProviderRef    *string   `json:"providerRef"`
	PromoCode      *string   `json:"promoCode,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type InitializeRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
	Amount         int    `json:"amount" validate:"required"` // pesewas
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone,omitempty"`
	PromoCode      string `json:"promoCode,omitempty"`
}

type InitializeResponse struct {
	Payment          *Payment `json:"payment"`
	AuthorizationURL string   `json:"authorizationUrl"`
}
