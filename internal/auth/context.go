package auth

import (
	"context"
	"errors"
	"fmt"
)

// Errors returned when an authenticated caller may not make a records call.
var (
	ErrMissingScope = errors.New("missing scope")
	ErrForeignOwner = errors.New("owner does not match token subject")
)

type claimsKey struct{}

// WithClaims stores the verified caller on the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext returns the caller stored by WithClaims. A nil entry counts as
// absent.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}

// OwnerKey returns the owner whose records the caller may touch with scope.
// Records are always scoped to the token subject: a non-empty requested owner
// must name the caller.
func OwnerKey(ctx context.Context, scope, requested string) (string, error) {
	claims, ok := FromContext(ctx)
	if !ok {
		return "", ErrMissingToken
	}
	if !claims.HasScope(scope) {
		return "", fmt.Errorf("%w: %s required", ErrMissingScope, scope)
	}
	if requested != "" && requested != claims.Subject {
		return "", ErrForeignOwner
	}
	return claims.Subject, nil
}
