package promo

import (
	"errors"
	"time"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

var (
	ErrNotFound    = errors.New("promo code not found")
	ErrInactive    = errors.New("promo code is not active")
	ErrNotInWindow = errors.New("promo code is outside its validity window")
	ErrExhausted   = errors.New("promo code has no uses left")
)

type PromoCode struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	DiscountType  string    `json:"discountType"`
	DiscountValue int       `json:"discountValue"` // percent, or pesewas for fixed
	MaxUses       int       `json:"maxUses"`
	UsedCount     int       `json:"usedCount"`
	ValidFrom     time.Time `json:"validFrom"`
	ValidUntil    time.Time `json:"validUntil"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Validate checks whether the code can still be redeemed at now.
func (p *PromoCode) Validate(now time.Time) error {
	if !p.IsActive {
		return ErrInactive
	}
	if now.Before(p.ValidFrom) || now.After(p.ValidUntil) {
		return ErrNotInWindow
	}
	if p.MaxUses > 0 && p.UsedCount >= p.MaxUses {
		return ErrExhausted
	}
	return nil
}

// Apply returns the discounted amount in pesewas. Percentage discounts are
// capped at 100% and fixed discounts floor the result at zero.
func (p *PromoCode) Apply(amount int) int {
	switch p.DiscountType {
	case DiscountPercentage:
		pct := p.DiscountValue
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
		return amount - (amount*pct)/100
	case DiscountFixed:
		discounted := amount - p.DiscountValue
		if discounted < 0 {
			return 0
		}
		return discounted
	default:
		return amount
	}
}

type CreatePromoCodeRequest struct {
	Code          string    `json:"code" validate:"required"`
	DiscountType  string    `json:"discountType" validate:"required"`
	DiscountValue int       `json:"discountValue" validate:"required"`
	MaxUses       int       `json:"maxUses"`
	ValidFrom     time.Time `json:"validFrom"`
	ValidUntil    time.Time `json:"validUntil"`
}
