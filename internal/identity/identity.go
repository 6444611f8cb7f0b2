package identity

import (
	"context"

	"github.com/aliuyar1234/cartshare/internal/apperrors"
	"github.com/google/uuid"
)

// ErrUnauthenticated is returned by every model operation when no user is
// attached to the context.
var ErrUnauthenticated = apperrors.Authentication("unauthenticated", "Sign in to continue")

// User is the caller resolved by the identity provider.
type User struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
}

type contextKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// FromContext returns the current user, if any.
func FromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(contextKey{}).(User)
	if !ok || user.ID == uuid.Nil {
		return User{}, false
	}
	return user, true
}

// Require returns the current user or ErrUnauthenticated.
func Require(ctx context.Context) (User, error) {
	user, ok := FromContext(ctx)
	if !ok {
		return User{}, ErrUnauthenticated
	}
	return user, nil
}
