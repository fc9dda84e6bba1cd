package intercept

import (
	"context"
	"strings"

	"github.com/ppiankov/affirmgate/internal/policy"
)

type (
	affirmedKey struct{}
	paramKey    struct{}
)

// WithParam sets the query parameter MarkURL appends under ctx.
func WithParam(ctx context.Context, param string) context.Context {
	return context.WithValue(ctx, paramKey{}, param)
}

func paramFrom(ctx context.Context) string {
	if p, _ := ctx.Value(paramKey{}).(string); p != "" {
		return p
	}
	return policy.DefaultAffirmParam
}

// WithAffirmed marks ctx as carrying an affirmed action.
func WithAffirmed(ctx context.Context) context.Context {
	return context.WithValue(ctx, affirmedKey{}, true)
}

// Affirmed reports whether ctx was marked by WithAffirmed.
func Affirmed(ctx context.Context) bool {
	v, _ := ctx.Value(affirmedKey{}).(bool)
	return v
}

// AffirmURL appends affirm=true to u, using "&" when u already has a query.
func AffirmURL(u string) string {
	return AffirmURLParam(u, policy.DefaultAffirmParam)
}

// AffirmURLParam is AffirmURL with a custom parameter name.
func AffirmURLParam(u, param string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + param + "=true"
}

// MarkURL returns u marked as affirmed when ctx is, and u unchanged
// otherwise. The parameter name comes from WithParam, defaulting to
// "affirm".
func MarkURL(ctx context.Context, u string) string {
	if !Affirmed(ctx) {
		return u
	}
	return AffirmURLParam(u, paramFrom(ctx))
}
