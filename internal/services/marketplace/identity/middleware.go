package identity

import (
	"context"
	"net/http"

	"github.com/Kingl1tz/shoppal/internal/platform/httpx"
	"github.com/Kingl1tz/shoppal/internal/platform/requestctx"
)

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware resolves the bearer token into the request context. Requests
// without a token continue anonymously; invalid tokens are rejected.
func Middleware(verifier *Verifier, onError ErrorWriter) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := httpx.BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := verifier.VerifyClaims(r.Context(), token)
			if err != nil {
				onError(w, r, err)
				return
			}
			ctx := WithIdentity(r.Context(), claims.Identity)
			ctx = context.WithValue(ctx, claimsKey{}, claims)
			ctx = requestctx.WithUserID(ctx, claims.Identity.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type claimsKey struct{}

// ClaimsFromContext returns the verified token claims of the request.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	if ctx == nil {
		return Claims{}, false
	}
	claims, ok := ctx.Value(claimsKey{}).(Claims)
	return claims, ok
}
