package promo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validCode() *PromoCode {
	return &PromoCode{
		Code:          "WELCOME10",
		DiscountType:  DiscountPercentage,
		DiscountValue: 10,
		MaxUses:       100,
		UsedCount:     0,
		ValidFrom:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil:    time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
		IsActive:      true,
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validCode().Validate(now))
	})

	t.Run("inactive", func(t *testing.T) {
		p := validCode()
		p.IsActive = false
		assert.ErrorIs(t, p.Validate(now), ErrInactive)
	})

	t.Run("before window", func(t *testing.T) {
		p := validCode()
		assert.ErrorIs(t, p.Validate(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)), ErrNotInWindow)
	})

	t.Run("after window", func(t *testing.T) {
		p := validCode()
		assert.ErrorIs(t, p.Validate(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)), ErrNotInWindow)
	})

	t.Run("exhausted", func(t *testing.T) {
		p := validCode()
		p.UsedCount = p.MaxUses
		assert.ErrorIs(t, p.Validate(now), ErrExhausted)
	})

	t.Run("unlimited uses", func(t *testing.T) {
		p := validCode()
		p.MaxUses = 0
		p.UsedCount = 10000
		assert.NoError(t, p.Validate(now))
	})
}

func TestApplyPercentage(t *testing.T) {
	p := validCode()

	assert.Equal(t, 4500, p.Apply(5000))

	p.DiscountValue = 100
	assert.Equal(t, 0, p.Apply(5000))

	// Over-100 percentages clamp instead of going negative.
	p.DiscountValue = 150
	assert.Equal(t, 0, p.Apply(5000))
}

func TestApplyFixed(t *testing.T) {
	p := validCode()
	p.DiscountType = DiscountFixed
	p.DiscountValue = 1000

	assert.Equal(t, 4000, p.Apply(5000))

	// Fixed discounts larger than the amount floor at zero.
	assert.Equal(t, 0, p.Apply(500))
}

func TestApplyUnknownTypeLeavesAmount(t *testing.T) {
	p := validCode()
	p.DiscountType = "bogus"
	assert.Equal(t, 5000, p.Apply(5000))
}
