package jwt

import (
	"errors"

	goJwt "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails parsing,
// signature verification, or claim validation.
var ErrInvalidToken = errors.New("jwt: invalid or expired token")

// Validator verifies signed tokens and extracts the channel claim used by
// the WebSocket adapter's optional authenticate() hook (spec §4.6).
type Validator struct {
	cfg Config
}

// NewValidator constructs a Validator bound to the given secret key.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// ExtractChannel parses and verifies token, returning the channel the
// connection should attach to.
func (v *Validator) ExtractChannel(token string) (string, error) {
	claims := &Claims{}
	parsed, err := goJwt.ParseWithClaims(token, claims, func(t *goJwt.Token) (any, error) {
		if _, ok := t.Method.(*goJwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(v.cfg.SecretKey), nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Sub == "" {
		return "", ErrInvalidToken
	}
	return claims.Sub, nil
}
