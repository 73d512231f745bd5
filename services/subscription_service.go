package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"uniLodgeAPI/internal/subscription"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

type SubscriptionService struct {
	db *pgxpool.Pool
}

func NewSubscriptionService(db *pgxpool.Pool) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// Create inserts a pending subscription for the chosen plan. The expiry is
// stamped at activation time, not here.
func (s *SubscriptionService) Create(ctx context.Context, userID, planCode string) (*subscription.Subscription, error) {
	plan := subscription.PlanByCode(planCode)
	if plan == nil {
		return nil, fmt.Errorf("unknown plan code %q", planCode)
	}

	sub := &subscription.Subscription{
		ID:       uuid.New().String(),
		UserID:   userID,
		PlanCode: plan.Code,
		Status:   subscription.StatusPending,
	}

	query := `
	INSERT INTO subscriptions (id, user_id, plan_code, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, NOW(), NOW())
	RETURNING created_at, updated_at
	`
	err := s.db.QueryRow(ctx, query, sub.ID, sub.UserID, sub.PlanCode, sub.Status).
		Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	return sub, nil
}

// GetByID fetches a subscription regardless of owner.
func (s *SubscriptionService) GetByID(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.scanOne(s.db.QueryRow(ctx, `
	SELECT id, user_id, plan_code, status, expires_at, created_at, updated_at
	FROM subscriptions WHERE id = $1`, id))
}

// LatestActiveForUser returns the newest active subscription row for the
// user, or ErrSubscriptionNotFound. Whether the row actually entitles access
// is the caller's decision (expiry may have passed).
func (s *SubscriptionService) LatestActiveForUser(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return s.scanOne(s.db.QueryRow(ctx, `
	SELECT id, user_id, plan_code, status, expires_at, created_at, updated_at
	FROM subscriptions
	WHERE user_id = $1 AND status = $2
	ORDER BY created_at DESC
	LIMIT 1`, userID, subscription.StatusActive))
}

// LatestActiveForClerkID is LatestActiveForUser keyed by the Clerk identity
// carried in the session, resolved through a join rather than a second
// round trip for the profile row.
func (s *SubscriptionService) LatestActiveForClerkID(ctx context.Context, clerkID string) (*subscription.Subscription, error) {
	return s.scanOne(s.db.QueryRow(ctx, `
	SELECT s.id, s.user_id, s.plan_code, s.status, s.expires_at, s.created_at, s.updated_at
	FROM subscriptions s
	JOIN users u ON u.id = s.user_id
	WHERE u.clerk_id = $1 AND s.status = $2
	ORDER BY s.created_at DESC
	LIMIT 1`, clerkID, subscription.StatusActive))
}

// Activate is the elevated-privilege path: it matches on the subscription id
// alone, with no owner check, because webhooks and some callback races carry
// no session. The status write is unconditional so a second activation
// converges on the same state instead of erroring; do not add a
// skip-if-already-active guard here, it would mask reactivation after a
// manual status correction. The expiry stamp keeps an existing value so a
// duplicate delivery does not shift the window.
func (s *SubscriptionService) Activate(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.scanOne(s.db.QueryRow(ctx, `
	UPDATE subscriptions
	SET status = $2,
	    expires_at = COALESCE(expires_at, NOW() + (CASE plan_code
	        WHEN 'monthly' THEN INTERVAL '30 days'
	        WHEN 'semester' THEN INTERVAL '120 days'
	        WHEN 'annual' THEN INTERVAL '365 days'
	        ELSE INTERVAL '30 days' END)),
	    updated_at = NOW()
	WHERE id = $1
	RETURNING id, user_id, plan_code, status, expires_at, created_at, updated_at`,
		id, subscription.StatusActive))
}

// ActivateForUser is the ordinary authorized path: same transition, but
// scoped to the owning user.
func (s *SubscriptionService) ActivateForUser(ctx context.Context, id, userID string) (*subscription.Subscription, error) {
	return s.scanOne(s.db.QueryRow(ctx, `
	UPDATE subscriptions
	SET status = $2,
	    expires_at = COALESCE(expires_at, NOW() + (CASE plan_code
	        WHEN 'monthly' THEN INTERVAL '30 days'
	        WHEN 'semester' THEN INTERVAL '120 days'
	        WHEN 'annual' THEN INTERVAL '365 days'
	        ELSE INTERVAL '30 days' END)),
	    updated_at = NOW()
	WHERE id = $1 AND user_id = $3
	RETURNING id, user_id, plan_code, status, expires_at, created_at, updated_at`,
		id, subscription.StatusActive, userID))
}

// UpdateStatus is the admin correction endpoint's write path. A correction
// re-arms the expiry warning so resubscribed owners hear about the new
// window too.
func (s *SubscriptionService) UpdateStatus(ctx context.Context, id, status string, expiresAt *time.Time) (*subscription.Subscription, error) {
	return s.scanOne(s.db.QueryRow(ctx, `
	UPDATE subscriptions
	SET status = $2, expires_at = $3, expiry_warned = FALSE, updated_at = NOW()
	WHERE id = $1
	RETURNING id, user_id, plan_code, status, expires_at, created_at, updated_at`,
		id, status, expiresAt))
}

// Cancel marks a subscription cancelled. Rows are never hard-deleted.
func (s *SubscriptionService) Cancel(ctx context.Context, id, userID string) (*subscription.Subscription, error) {
	return s.scanOne(s.db.QueryRow(ctx, `
	UPDATE subscriptions
	SET status = $3, updated_at = NOW()
	WHERE id = $1 AND user_id = $2
	RETURNING id, user_id, plan_code, status, expires_at, created_at, updated_at`,
		id, userID, subscription.StatusCancelled))
}

// List returns subscriptions newest-first for the admin back-office.
func (s *SubscriptionService) List(ctx context.Context, limit, offset int) ([]*subscription.Subscription, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
	SELECT id, user_id, plan_code, status, expires_at, created_at, updated_at
	FROM subscriptions
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		sub := &subscription.Subscription{}
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.PlanCode, &sub.Status, &sub.ExpiresAt, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// MarkExpired flips active rows whose expiry has passed to expired. Run by
// the background sweeper; the count is logged by the caller.
func (s *SubscriptionService) MarkExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
	UPDATE subscriptions
	SET status = $1, updated_at = NOW()
	WHERE status = $2 AND expires_at IS NOT NULL AND expires_at < NOW()`,
		subscription.StatusExpired, subscription.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired subscriptions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClaimExpiryWarnings picks up active subscriptions entering their final
// three days and flags them so each owner is warned exactly once. Returns
// the owning user ids.
func (s *SubscriptionService) ClaimExpiryWarnings(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `
	UPDATE subscriptions
	SET expiry_warned = TRUE, updated_at = NOW()
	WHERE status = $1 AND expiry_warned = FALSE
	  AND expires_at IS NOT NULL
	  AND expires_at > NOW()
	  AND expires_at < NOW() + INTERVAL '3 days'
	RETURNING user_id`, subscription.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to claim expiry warnings: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

func (s *SubscriptionService) scanOne(row pgx.Row) (*subscription.Subscription, error) {
	sub := &subscription.Subscription{}
	err := row.Scan(&sub.ID, &sub.UserID, &sub.PlanCode, &sub.Status, &sub.ExpiresAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return sub, nil
}
