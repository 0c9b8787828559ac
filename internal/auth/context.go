package auth

import "context"

type contextKey string

const userContextKey contextKey = "auth_user"

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFrom returns the signed-in user placed on the context by the admin gate.
func UserFrom(ctx context.Context) *User {
	if u, ok := ctx.Value(userContextKey).(*User); ok {
		return u
	}
	return nil
}
