package middleware

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/data"
)

type contextKey string

const (
	AuthContextKey contextKey = "auth_context"
)

// AuthContext holds the authenticated operator's identity for the request.
type AuthContext struct {
	UserID  string
	TokenID string // jti
}

// GetAuthContext retrieves the AuthContext from the context
func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	val, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return val, ok
}

// WithAuthContext attaches the AuthContext to the context
func WithAuthContext(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, auth)
}

// GetUserFromContext constructs a partial User object from AuthContext.
// This is a helper for handlers that need a User struct for Service calls;
// the returned value only carries the ID known from the token.
func GetUserFromContext(ctx context.Context) (*data.User, error) {
	ac, ok := GetAuthContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no auth context found")
	}

	uid, err := uuid.Parse(ac.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id in context: %v", err)
	}

	return &data.User{ID: uid}, nil
}
