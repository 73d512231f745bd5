package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uniLodgeAPI/middleware"
	"uniLodgeAPI/tests/helpers"
)

func protectedProbe() (http.Handler, *bool) {
	var reached bool
	handler := middleware.ClerkAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &reached
}

func TestProtectedRouteWithoutTokenReturns401(t *testing.T) {
	handler, reached := protectedProbe()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, *reached)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestProtectedRouteWithUnverifiableTokenReturns401(t *testing.T) {
	handler, reached := protectedProbe()

	// Signed with a key Clerk does not know, so verification must fail.
	token, err := helpers.GenerateMockClerkJWT("user_test_unverifiable")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, *reached)
}

func TestProtectedRouteWithMalformedAuthHeaderReturns401(t *testing.T) {
	handler, reached := protectedProbe()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Token abc123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, *reached)
}

func TestSessionCookieIsAccepted(t *testing.T) {
	handler, reached := protectedProbe()

	// The cookie carries an unverifiable token; the point is that the
	// middleware reads __session at all rather than only the header.
	token, err := helpers.GenerateMockClerkJWT("user_test_cookie")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.AddCookie(&http.Cookie{Name: "__session", Value: token})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// Still 401 (signature cannot verify here) but through the cookie path.
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, *reached)
}
