package middleware

import (
	"context"

	"github.com/spatialdeez/microstore/internal/auth"
)

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller resolved by Authenticate, or nil for an
// anonymous request.
func PrincipalFrom(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalKey{}).(*auth.Principal)
	return p
}
