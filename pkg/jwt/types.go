package jwt

import "github.com/golang-jwt/jwt/v5"

// Config holds JWT configuration.
type Config struct {
	SecretKey string
}

// Claims represents the JWT claims this service expects: Sub carries the
// channel a connection should attach to once authenticated.
type Claims struct {
	jwt.RegisteredClaims
	Sub string `json:"sub"`
}
