// Package auth is the boundary to the external identity provider. The
// service never talks to the provider directly; it only verifies the
// credential presented with a request and extracts the principal ID that
// owns links. The JWT verifier here is one binding of that contract.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/swiftlink/swiftlink/internal/errx"
)

// Verifier verifies a request credential and returns the principal ID it
// belongs to. Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// JWTVerifier verifies HS256-signed bearer tokens whose subject claim is the
// principal ID.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with the given secret.
func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret cannot be empty")
	}
	return &JWTVerifier{secret: secret}, nil
}

// Verify parses and validates the token and returns its subject.
func (v *JWTVerifier) Verify(ctx context.Context, credential string) (string, error) {
	const op = "auth.JWTVerifier.Verify"

	if credential == "" {
		return "", errx.E(op, errx.Unauthorized, errors.New("missing credential"))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", errx.E(op, errx.Unauthorized, err)
	}
	if !token.Valid {
		return "", errx.E(op, errx.Unauthorized, errors.New("invalid token"))
	}
	if claims.Subject == "" {
		return "", errx.E(op, errx.Unauthorized, errors.New("token has no subject"))
	}

	return claims.Subject, nil
}
