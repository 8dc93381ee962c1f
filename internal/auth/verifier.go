// internal/auth/verifier.go
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// ErrUnauthorized is returned when a credential cannot be resolved to a
// caller identity.
var ErrUnauthorized = errors.New("unauthorized access")

// Verifier resolves a request credential to a verified user identity. Token
// issuance happens upstream; this side only checks.
type Verifier interface {
	VerifyCaller(credential string) (string, error)
}

// JWTVerifier validates HMAC-signed tokens whose subject is the caller's
// email.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

func (v *JWTVerifier) VerifyCaller(credential string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

type identityKey struct{}

// WithIdentity stashes the verified caller identity on the context.
func WithIdentity(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, identityKey{}, email)
}

// Identity returns the verified caller identity, if any.
func Identity(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(identityKey{}).(string)
	return email, ok
}
