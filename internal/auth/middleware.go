package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/swiftlink/swiftlink/internal/httpx"
)

// CookieName is the session cookie checked when no Authorization header is
// present.
const CookieName = "auth_token"

type contextKey string

const principalContextKey contextKey = "principal"

// PrincipalFrom returns the authenticated principal ID stored by Middleware,
// or "" when the request was not authenticated.
func PrincipalFrom(ctx context.Context) string {
	if p, ok := ctx.Value(principalContextKey).(string); ok {
		return p
	}
	return ""
}

// WithPrincipal stores a principal ID in the context. Useful in tests.
func WithPrincipal(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, principalContextKey, principalID)
}

// Middleware authenticates requests with the given verifier. The credential
// is taken from a Bearer Authorization header, falling back to the session
// cookie. Unauthenticated requests get a 401 and never reach the handler.
func Middleware(verifier Verifier, logger *slog.Logger) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := credentialFrom(r)
			if credential == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
					"missing credentials", nil)
				return
			}

			principalID, err := verifier.Verify(r.Context(), credential)
			if err != nil {
				logger.WarnContext(r.Context(), "credential rejected",
					"request_id", httpx.GetRequestID(r.Context()),
					"path", r.URL.Path,
					"error", err.Error(),
				)
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
					"invalid or expired credentials", nil)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey, principalID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func credentialFrom(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		return token
	}

	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}
