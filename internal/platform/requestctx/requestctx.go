// Package requestctx carries per-request values through context.
package requestctx

import "context"

type (
	userIDContextKey    struct{}
	requestIDContextKey struct{}
	localeContextKey    struct{}
)

// WithUserID stores the authenticated user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, userIDContextKey{})
}

// WithRequestID stores the correlation id for the current request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the correlation id stored in context.
func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDContextKey{})
}

// WithLocale stores the negotiated response locale (BCP 47 tag).
func WithLocale(ctx context.Context, locale string) context.Context {
	return withString(ctx, localeContextKey{}, locale)
}

// LocaleFromContext returns the negotiated locale, or "" when unset.
func LocaleFromContext(ctx context.Context) string {
	return stringFrom(ctx, localeContextKey{})
}

func withString(ctx context.Context, key any, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
