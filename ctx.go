package credentials

import "context"

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the validated bearer claims in the given context
func WithClaimsContext(ctx context.Context, claims *JWTClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the bearer claims from the context
func GetClaims(ctx context.Context) (*JWTClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(claimsCtxKey).(*JWTClaims)
	return raw, ok && raw != nil
}

// HasRole reports whether the context carries claims with role
func HasRole(ctx context.Context, role Role) bool {
	claims, ok := GetClaims(ctx)
	if !ok {
		return false
	}
	return claims.Role() == role
}
