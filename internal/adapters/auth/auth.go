// Package auth verifies session tokens and guards HTTP routes. Tokens are
// issued by the identity provider; Mint exists for synthetic users only.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/okian/gridpick/internal/domain/model"
)

var (
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden is returned when an authenticated user lacks a privilege.
	ErrForbidden = errors.New("forbidden")
)

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a verifier. An empty issuer disables the iss check.
func NewVerifier(secret, issuer string, opts ...Option) *Verifier {
	v := &Verifier{key: []byte(secret), issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Parse verifies tok and returns the session it describes.
func (v *Verifier) Parse(tok string) (model.Session, error) {
	if tok == "" {
		return model.Session{}, ErrMissingToken
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	t, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, parserOpts...)
	if err != nil || !t.Valid {
		return model.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return model.Session{}, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return model.Session{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	s := model.Session{UserID: sub, Token: tok}
	s.Username, _ = claims["username"].(string)
	if s.Username == "" {
		s.Username = sub
	}
	s.Admin = isAdminClaim(claims)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	return s, nil
}

func isAdminClaim(claims jwt.MapClaims) bool {
	if b, ok := claims["is_admin"].(bool); ok && b {
		return true
	}
	role, _ := claims["role"].(string)
	return role == "admin"
}

// Mint signs a token for s valid for ttl.
func (v *Verifier) Mint(s model.Session, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.MapClaims{
		"sub":      s.UserID,
		"username": s.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	if s.Admin {
		claims["role"] = "admin"
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(v.key)
}

type sessionKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s model.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by the middleware.
func FromContext(ctx context.Context) (model.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(model.Session)
	return s, ok && s.Authenticated()
}

// TokenFromRequest reads the bearer token, falling back to the token query
// parameter used by websocket clients.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
