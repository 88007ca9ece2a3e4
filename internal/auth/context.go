package auth

import (
	"context"
)

type ctxKey string

const claimsKey ctxKey = "portalClaims"

// Claims identifies the authenticated principal for the rest of the request.
type Claims struct {
	CustomerID uint
	Roles      []string
	JTI        string
}

func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(claimsKey).(Claims); ok {
		return v
	}
	return Claims{}
}

// CustomerID returns the authenticated customer's id, zero if unauthenticated.
func CustomerID(ctx context.Context) uint {
	return FromContext(ctx).CustomerID
}
