package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingStore struct {
	calls   chan struct{}
	warns   []string
	claimed bool
	mu      sync.Mutex
}

func (c *countingStore) MarkExpired(_ context.Context) (int64, error) {
	c.calls <- struct{}{}
	return 1, nil
}

func (c *countingStore) ClaimExpiryWarnings(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed {
		return nil, nil
	}
	c.claimed = true
	return c.warns, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	users []string
}

func (n *recordingNotifier) SendSubscriptionExpiring(_ context.Context, userID string, _ int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
}

func TestExpirySweeperSweepsImmediatelyAndOnTicker(t *testing.T) {
	store := &countingStore{calls: make(chan struct{}, 10)}
	sweeper := NewExpirySweeper(store, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-store.calls:
		case <-time.After(time.Second):
			t.Fatalf("sweep %d never ran", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}

func TestExpirySweeperWarnsExpiringSubscriptions(t *testing.T) {
	store := &countingStore{
		calls: make(chan struct{}, 10),
		warns: []string{"user-1", "user-2"},
	}
	notifier := &recordingNotifier{}
	sweeper := NewExpirySweeper(store, notifier, time.Hour)

	sweeper.sweep(context.Background())

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{"user-1", "user-2"}, notifier.users)
}

func TestExpirySweeperSkipsWarningsWithoutNotifier(t *testing.T) {
	store := &countingStore{
		calls: make(chan struct{}, 10),
		warns: []string{"user-1"},
	}
	sweeper := NewExpirySweeper(store, nil, time.Hour)

	sweeper.sweep(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.False(t, store.claimed, "claim query should not run when nobody can be notified")
}

func TestNewExpirySweeperDefaultsInterval(t *testing.T) {
	sweeper := NewExpirySweeper(&countingStore{calls: make(chan struct{}, 1)}, nil, 0)
	assert.Equal(t, time.Hour, sweeper.interval)
}
