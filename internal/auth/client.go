package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// StaticToken is a client credential provider holding one bearer token.
type StaticToken string

// Credential returns the token, or ErrMissingToken when it is empty.
func (s StaticToken) Credential(context.Context) (string, error) {
	if s == "" {
		return "", ErrMissingToken
	}
	return string(s), nil
}

// Subject reads the sub claim without verifying the signature. The client uses
// it as the owner key; the server verifies the token on every request.
func Subject(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return sub, nil
}
