package auth

import "context"

type ctxKey string

const userKey ctxKey = "userClaims"

// Claims is the authenticated identity attached to a request context.
// It never carries the password hash.
type Claims struct {
	UserID uint
	Email  string
	Role   string
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, userKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(userKey).(Claims); ok {
		return v
	}
	return Claims{}
}
