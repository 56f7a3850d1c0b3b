package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/you/findmyseat/domain"
)

// TokenInspectorImpl implements domain.TokenInspector.
// The client cannot verify signatures (it holds no key); it only reads claims
// so that an expired token does not count as an authenticated session.
type TokenInspectorImpl struct {
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenInspector creates a token inspector using now as the clock
func NewTokenInspector(now func() time.Time) domain.TokenInspector {
	if now == nil {
		now = time.Now
	}
	return &TokenInspectorImpl{
		parser: jwt.NewParser(),
		now:    now,
	}
}

// Inspect implements domain.TokenInspector. Opaque (non-JWT) tokens are accepted
// as long as they are non-empty.
func (i *TokenInspectorImpl) Inspect(token string) (*domain.TokenClaims, error) {
	if token == "" {
		return nil, domain.ErrNoToken
	}
	if strings.Count(token, ".") != 2 {
		return &domain.TokenClaims{}, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := i.parser.ParseUnverified(token, claims); err != nil {
		return nil, domain.ErrTokenMalformed
	}

	out := &domain.TokenClaims{}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		out.Subject = sub
	} else if uid, ok := claims["user_id"]; ok {
		out.Subject = fmt.Sprintf("%v", uid)
	}
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, domain.ErrTokenMalformed
	}
	if exp != nil {
		out.ExpiresAt = exp.Unix()
		if !exp.After(i.now()) {
			return nil, domain.ErrTokenExpired
		}
	}

	return out, nil
}
