package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntitles(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tomorrow := now.Add(24 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)

	tests := []struct {
		name      string
		status    string
		expiresAt *time.Time
		want      bool
	}{
		{"active with future expiry", StatusActive, &tomorrow, true},
		{"active with past expiry", StatusActive, &yesterday, false},
		{"active with nil expiry", StatusActive, nil, false},
		{"pending with future expiry", StatusPending, &tomorrow, false},
		{"expired", StatusExpired, &yesterday, false},
		{"cancelled with future expiry", StatusCancelled, &tomorrow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &Subscription{Status: tt.status, ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, sub.Entitles(now))
		})
	}
}

func TestEntitlesNilSubscription(t *testing.T) {
	var sub *Subscription
	assert.False(t, sub.Entitles(time.Now()))
}

func TestEntitlesExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// An expiry exactly at now is no longer entitling.
	sub := &Subscription{Status: StatusActive, ExpiresAt: &now}
	assert.False(t, sub.Entitles(now))
}

func TestPlanByCode(t *testing.T) {
	plan := PlanByCode("semester")
	if assert.NotNil(t, plan) {
		assert.Equal(t, "Semester", plan.Name)
		assert.Equal(t, 5000, plan.Price)
	}

	assert.Nil(t, PlanByCode("lifetime"))
}
