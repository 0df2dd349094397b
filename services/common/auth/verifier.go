package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrNoSecret     = errors.New("JWT secret not configured")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrWrongType    = errors.New("invalid token type")
)

// Verifier validates HMAC-signed operator tokens.
type Verifier struct {
	secretKey []byte
	parser    *jwt.Parser
}

// NewVerifier returns a Verifier for secret. An empty secret rejects every token.
func NewVerifier(secret string) *Verifier {
	v := &Verifier{parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))}
	if secret != "" {
		v.secretKey = []byte(secret)
	}
	return v
}

// ParseAndValidateToken returns the claims of a valid, unexpired token. If
// expectedType is non-empty the "typ" claim must equal it.
func (v *Verifier) ParseAndValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	if v.secretKey == nil {
		return nil, ErrNoSecret
	}

	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return v.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if expectedType != "" {
		if typ, _ := claims["typ"].(string); typ != expectedType {
			return nil, ErrWrongType
		}
	}
	return claims, nil
}
