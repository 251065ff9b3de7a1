package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"vendosync/internal/auth"
)

const secret = "identity-secret"

func TestRoleOrder(t *testing.T) {
	require.True(t, auth.Admin.AtLeast(auth.Manager))
	require.True(t, auth.Manager.AtLeast(auth.Executive))
	require.True(t, auth.Manager.AtLeast(auth.Manager))
	require.False(t, auth.Executive.AtLeast(auth.Manager))

	role, err := auth.ParseRole("Manager")
	require.NoError(t, err)
	require.Equal(t, auth.Manager, role)

	_, err = auth.ParseRole("intern")
	require.ErrorIs(t, err, auth.ErrUnknownRole)
}

func TestAuthenticateRoundTrip(t *testing.T) {
	a := auth.NewAuthenticator(secret)
	token, err := a.Sign(auth.Actor{UID: "u1", Email: "u1@example.com", Role: auth.Manager}, time.Hour)
	require.NoError(t, err)

	actor, err := a.Authenticate(token)
	require.NoError(t, err)
	require.Equal(t, auth.Actor{UID: "u1", Email: "u1@example.com", Role: auth.Manager}, actor)
}

func TestAuthenticateRejects(t *testing.T) {
	a := auth.NewAuthenticator(secret)

	expired, err := a.Sign(auth.Actor{UID: "u1", Role: auth.Admin}, -time.Minute)
	require.NoError(t, err)

	foreign, err := auth.NewAuthenticator("other").Sign(auth.Actor{UID: "u1", Role: auth.Admin}, time.Hour)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UID:  "u1",
		Role: "intern",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":   "",
		"garbage": "not-a-token",
		"expired": expired,
		"foreign": foreign,
		"role":    badRole,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Authenticate(token)
			require.ErrorIs(t, err, auth.ErrUnauthenticated)
		})
	}
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", auth.BearerToken("Bearer abc"))
	require.Equal(t, "abc", auth.BearerToken("bearer abc"))
	require.Equal(t, "", auth.BearerToken("Basic abc"))
	require.Equal(t, "", auth.BearerToken(""))
}

func TestGuardRequire(t *testing.T) {
	a := auth.NewAuthenticator(secret)
	guard := auth.NewGuard(a)

	var seen auth.Actor
	h := guard.Require(auth.Manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.ActorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	sign := func(role auth.Role) string {
		token, err := a.Sign(auth.Actor{UID: "u-" + role.String(), Role: role}, time.Hour)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"executive", "Bearer " + sign(auth.Executive), http.StatusForbidden},
		{"manager", "Bearer " + sign(auth.Manager), http.StatusOK},
		{"admin", "Bearer " + sign(auth.Admin), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			require.Equal(t, tt.status, w.Code)
		})
	}

	require.Equal(t, "u-admin", seen.UID)
}
