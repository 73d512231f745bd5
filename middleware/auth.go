package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
)

type contextKey string

const ClerkIDKey contextKey = "clerkID"

// Session is the resolved caller identity. AdminClaim carries the role claim
// embedded in the session metadata, used as a fallback when the profile row
// cannot be read.
type Session struct {
	ClerkID    string
	AdminClaim *bool
}

type sessionMetadata struct {
	Metadata struct {
		Role string `json:"role"`
	} `json:"metadata"`
}

// sessionToken pulls the Clerk JWT from the Authorization header or, for
// browser navigation, the __session cookie.
func sessionToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != authHeader {
			return token, true
		}
		return "", false
	}

	if cookie, err := r.Cookie("__session"); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	return "", false
}

// ResolveSession verifies the request's Clerk session token. The boolean is
// false for missing, malformed, or unverifiable tokens.
func ResolveSession(r *http.Request) (*Session, bool) {
	token, ok := sessionToken(r)
	if !ok {
		return nil, false
	}

	claims, err := jwt.Verify(r.Context(), &jwt.VerifyParams{
		Token: token,
		CustomClaimsConstructor: func(_ context.Context) any {
			return &sessionMetadata{}
		},
	})
	if err != nil {
		log.Printf("Token verification failed: %v", err)
		return nil, false
	}

	session := &Session{ClerkID: claims.Subject}
	if meta, ok := claims.Custom.(*sessionMetadata); ok && meta.Metadata.Role != "" {
		isAdmin := meta.Metadata.Role == "admin"
		session.AdminClaim = &isAdmin
	}

	return session, true
}

// ClerkAuthMiddleware validates the session token and stashes the Clerk user
// ID in the request context. JSON 401 on failure; the redirecting variants
// live on AccessGate.
func ClerkAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := ResolveSession(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), ClerkIDKey, session.ClerkID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClerkID extracts the Clerk user ID from context.
func GetClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(ClerkIDKey).(string)
	return clerkID, ok
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(fmt.Sprintf(`{"error": "%s"}`, message)))
}
