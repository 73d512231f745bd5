package subscription

import "time"

const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

type Subscription struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	PlanCode  string     `json:"planCode"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Entitles reports whether the subscription currently grants access.
// A nil expiry never entitles, even on an active row: an activation that
// failed to stamp an expiry must not hand out indefinite access.
func (s *Subscription) Entitles(now time.Time) bool {
	if s == nil {
		return false
	}
	return s.Status == StatusActive && s.ExpiresAt != nil && s.ExpiresAt.After(now)
}

// Plan is a purchasable access window. Prices are pesewas.
type Plan struct {
	Code     string        `json:"code"`
	Name     string        `json:"name"`
	Price    int           `json:"price"`
	Duration time.Duration `json:"-"`
}

var Plans = []Plan{
	{Code: "monthly", Name: "Monthly", Price: 1500, Duration: 30 * 24 * time.Hour},
	{Code: "semester", Name: "Semester", Price: 5000, Duration: 120 * 24 * time.Hour},
	{Code: "annual", Name: "Annual", Price: 9000, Duration: 365 * 24 * time.Hour},
}

// PlanByCode returns the plan for code, or nil for an unknown code.
func PlanByCode(code string) *Plan {
	for i := range Plans {
		if Plans[i].Code == code {
			return &Plans[i]
		}
	}
	return nil
}

type CreateSubscriptionRequest struct {
	PlanCode string `json:"planCode" validate:"required"`
}

type UpdateStatusRequest struct {
	Status    string     `json:"status" validate:"required"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
