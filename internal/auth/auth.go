// Package auth verifies bearer tokens issued by the identity provider and
// makes the authenticated user ID available on the request context.
//
// The service never issues credentials itself. The frontend obtains an HS256
// JWT from the identity provider; this package only verifies the signature
// and expiry and extracts the subject. SignToken exists for tests and local
// development.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const userKey ctxKey = 1

// Claims are the JWT claims the service consumes. The user ID is carried in
// the registered subject claim; Admin marks administrative accounts.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens against a shared HS256 secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier. secret must be non-empty.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("auth: secret must not be empty")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// SignToken issues a token for userID. Test and local-development helper.
func (v *Verifier) SignToken(userID string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// parseToken verifies the signature and expiry and returns the claims.
func (v *Verifier) parseToken(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{},
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Subject == "" {
		return nil, errors.New("auth: invalid token")
	}
	return c, nil
}

// Middleware attaches verified claims to the request context when a valid
// Authorization bearer token is present. Requests without (or with invalid)
// tokens pass through unauthenticated; pair with [RequireUser] on routes
// that need an identity.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if strings.HasPrefix(h, "Bearer ") {
			tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			if c, err := v.parseToken(tok); err == nil {
				ctx := context.WithValue(r.Context(), userKey, c)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects requests that carry no verified identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := claimsFrom(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose identity is not an admin account.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := claimsFrom(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !c.Admin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserID returns the authenticated user ID from ctx, or "" when the request
// is unauthenticated.
func UserID(ctx context.Context) string {
	if c, ok := claimsFrom(ctx); ok {
		return c.Subject
	}
	return ""
}

func claimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(userKey).(*Claims)
	return c, ok
}
