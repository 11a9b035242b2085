/*
auth.go - JWT authentication and role-based authorization

PURPOSE:
  Protects the API with bearer tokens. Two roles exist:
  - admin:     Full access, including approvals, plans, and seeds
  - executive: Read access to their own data only

TOKEN FLOW:
  POST /api/auth/token with the bootstrap secret issues a signed HS256
  JWT carrying the role and (for executives) the executive ID. Every
  other endpoint expects "Authorization: Bearer <token>".

AUTHORIZATION RULES:
  - RequireRole(admin): mutation endpoints (approve, reject, pay, plans)
  - RequireSelfOrAdmin: executive-scoped reads; an executive can only
    see their own dashboard, commissions, and statements

SECURITY NOTE:
  The bootstrap-secret token endpoint is a stand-in for a real identity
  provider. In production, tokens would come from SSO and this endpoint
  would be disabled.

SEE ALSO:
  - server.go: Where the middleware is mounted per route group
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Roles understood by the authorizer.
const (
	RoleAdmin     = "admin"
	RoleExecutive = "executive"
)

type ctxKey int

const identityKey ctxKey = 0

// Identity is the authenticated caller, extracted from the JWT.
type Identity struct {
	ExecutiveID string
	Role        string
}

// claims is the JWT payload we sign and verify.
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies API tokens.
type Authenticator struct {
	secret          []byte
	bootstrapSecret string
	tokenTTL        time.Duration
}

// NewAuthenticator creates an authenticator with the given signing key
// and bootstrap secret for the dev token endpoint.
func NewAuthenticator(signingKey, bootstrapSecret string) *Authenticator {
	return &Authenticator{
		secret:          []byte(signingKey),
		bootstrapSecret: bootstrapSecret,
		tokenTTL:        24 * time.Hour,
	}
}

// Issue signs a token for the given identity.
func (a *Authenticator) Issue(executiveID, role string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(a.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   executiveID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token string.
func (a *Authenticator) Verify(tokenString string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, errors.New("invalid token")
	}
	return Identity{ExecutiveID: c.Subject, Role: c.Role}, nil
}

// identityFrom returns the authenticated identity, if any.
func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// RequireAuth verifies the bearer token and stores the identity in the
// request context.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		identity, err := a.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects callers without the admin role. Must run after
// RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFrom(r.Context())
		if !ok || identity.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "Admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSelfOrAdmin lets admins through unconditionally, and executives
// only when the {id} URL parameter matches their own ID.
func RequireSelfOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		if identity.Role != RoleAdmin && identity.ExecutiveID != chi.URLParam(r, "id") {
			writeError(w, http.StatusForbidden, "Access limited to your own records", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// TOKEN ENDPOINT
// =============================================================================

// IssueToken exchanges the bootstrap secret for a signed JWT.
// POST /api/auth/token
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Secret != h.Auth.bootstrapSecret {
		writeError(w, http.StatusUnauthorized, "Invalid bootstrap secret", nil)
		return
	}
	if req.Role == RoleExecutive && req.ExecutiveID == "" {
		writeError(w, http.StatusBadRequest, "executive_id is required for the executive role", nil)
		return
	}

	token, expiresAt, err := h.Auth.Issue(req.ExecutiveID, req.Role, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sign token", err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}
