package workers

import (
	"context"
	"log"
	"time"
)

// ExpiryStore is the subscription access the sweeper needs.
type ExpiryStore interface {
	MarkExpired(ctx context.Context) (int64, error)
	ClaimExpiryWarnings(ctx context.Context) ([]string, error)
}

// ExpiryNotifier sends the renewal-reminder push. Best effort.
type ExpiryNotifier interface {
	SendSubscriptionExpiring(ctx context.Context, userID string, daysLeft int)
}

// ExpirySweeper periodically flips active subscriptions whose expiry has
// passed to expired, and warns owners entering their final days. The access
// gate already denies lapsed subscriptions via the entitlement check; the
// sweeper keeps the stored status truthful for the admin listing.
type ExpirySweeper struct {
	store    ExpiryStore
	notifier ExpiryNotifier
	interval time.Duration
}

func NewExpirySweeper(store ExpiryStore, notifier ExpiryNotifier, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpirySweeper{store: store, notifier: notifier, interval: interval}
}

// Run blocks until ctx is cancelled. Call it in a goroutine from main.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("Expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := s.store.MarkExpired(sweepCtx)
	if err != nil {
		log.Printf("Expiry sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Expiry sweep marked %d subscriptions expired", n)
	}

	if s.notifier == nil {
		return
	}

	userIDs, err := s.store.ClaimExpiryWarnings(sweepCtx)
	if err != nil {
		log.Printf("Expiry warning claim failed: %v", err)
		return
	}
	for _, userID := range userIDs {
		s.notifier.SendSubscriptionExpiring(sweepCtx, userID, 3)
	}
}
