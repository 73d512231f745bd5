package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"uniLodgeAPI/internal/cache"
	"uniLodgeAPI/internal/subscription"
	"uniLodgeAPI/services"
)

const (
	LoginPath     = "/auth/login"
	SubscribePath = "/subscribe"
)

// SubscriptionSource yields the newest active subscription row for a caller.
type SubscriptionSource interface {
	LatestActiveForClerkID(ctx context.Context, clerkID string) (*subscription.Subscription, error)
}

// RoleSource resolves whether a caller's profile marks them as admin.
type RoleSource interface {
	IsAdmin(ctx context.Context, clerkID string) (bool, error)
}

// SessionResolver turns a request into a Session. Production uses
// ResolveSession; tests inject fakes.
type SessionResolver func(r *http.Request) (*Session, bool)

// AccessGate is the per-request interceptor guarding the three route
// classes: auth-only, subscription-gated, and admin. It is constructed
// explicitly and handed its caches, never reached through package state.
// Per request it performs at most one session resolution and one
// cache-or-database lookup per concern.
type AccessGate struct {
	sessions   SessionResolver
	subs       SubscriptionSource
	roles      RoleSource
	subCache   *cache.Cache[*subscription.Subscription]
	adminCache *cache.Cache[bool]
	now        func() time.Time
}

type GateOption func(*AccessGate)

// WithGateClock overrides the entitlement clock for tests.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *AccessGate) { g.now = now }
}

// WithSessionResolver replaces the Clerk-backed session resolution.
func WithSessionResolver(resolver SessionResolver) GateOption {
	return func(g *AccessGate) { g.sessions = resolver }
}

func NewAccessGate(subs SubscriptionSource, roles RoleSource,
	subCache *cache.Cache[*subscription.Subscription], adminCache *cache.Cache[bool],
	opts ...GateOption) *AccessGate {

	g := &AccessGate{
		sessions:   ResolveSession,
		subs:       subs,
		roles:      roles,
		subCache:   subCache,
		adminCache: adminCache,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequireAuth admits any request with a valid session; everything else is
// sent to the login page carrying the original path as the return target.
func (g *AccessGate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := g.sessions(r)
		if !ok {
			redirectWithReturn(w, r, LoginPath)
			return
		}

		next.ServeHTTP(w, r.WithContext(withClerkID(r.Context(), session.ClerkID)))
	})
}

// RequireSubscription admits a request only when the caller holds an
// entitling subscription: active status AND a non-null expiry in the future.
// Missing session goes to login, missing entitlement to the paywall.
func (g *AccessGate) RequireSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := g.sessions(r)
		if !ok {
			redirectWithReturn(w, r, LoginPath)
			return
		}

		sub, ok := g.subCache.Get(session.ClerkID)
		if !ok {
			var err error
			sub, err = g.subs.LatestActiveForClerkID(r.Context(), session.ClerkID)
			if err != nil {
				// A caller with no active row at all is the common case, not
				// a failure. Misses are not cached so a fresh activation is
				// picked up on the next request.
				if !errors.Is(err, services.ErrSubscriptionNotFound) && !errors.Is(err, context.Canceled) {
					log.Printf("Subscription lookup failed for %s: %v", session.ClerkID, err)
				}
				redirectWithReturn(w, r, SubscribePath)
				return
			}
			g.subCache.Set(session.ClerkID, sub)
		}

		if !sub.Entitles(g.now()) {
			redirectWithReturn(w, r, SubscribePath)
			return
		}

		next.ServeHTTP(w, r.WithContext(withClerkID(r.Context(), session.ClerkID)))
	})
}

// RequireAdmin admits admins only. Anyone else, authenticated or not, is
// sent to the application root rather than the login page, so the path does
// not advertise that an admin surface exists behind it.
func (g *AccessGate) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := g.sessions(r)
		if !ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		isAdmin, ok := g.adminCache.Get(session.ClerkID)
		if !ok {
			isAdmin = g.resolveAdmin(r.Context(), session)
			g.adminCache.Set(session.ClerkID, isAdmin)
		}

		if !isAdmin {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r.WithContext(withClerkID(r.Context(), session.ClerkID)))
	})
}

// resolveAdmin tries the profile role first and falls back to the role claim
// carried in the session metadata when the profile read fails. The result is
// cached by the caller whichever source produced it.
func (g *AccessGate) resolveAdmin(ctx context.Context, session *Session) bool {
	isAdmin, err := g.roles.IsAdmin(ctx, session.ClerkID)
	if err == nil {
		return isAdmin
	}

	log.Printf("Profile role lookup failed for %s, falling back to session claim: %v", session.ClerkID, err)
	if session.AdminClaim != nil {
		return *session.AdminClaim
	}
	return false
}

// InvalidateSubscription drops the cached entry after a state change
// (activation, cancellation) so the gate picks up fresh state immediately.
func (g *AccessGate) InvalidateSubscription(clerkID string) {
	g.subCache.Delete(clerkID)
}

func redirectWithReturn(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target+"?redirect="+url.QueryEscape(r.URL.Path), http.StatusFound)
}

func withClerkID(ctx context.Context, clerkID string) context.Context {
	return context.WithValue(ctx, ClerkIDKey, clerkID)
}
