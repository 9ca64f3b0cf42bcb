package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/liquidintel/taplist/pkg/httputil"
	"github.com/liquidintel/taplist/pkg/observability"
)

type contextKey string

const principalContextKey contextKey = "auth.principal"

// PrincipalFromContext returns the bearer principal attached by
// RequireBearer, or nil when the request was not bearer-authenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalContextKey).(*Principal); ok {
		return p
	}
	return nil
}

// ContextWithPrincipal attaches a principal to the context. Exposed for
// handler tests.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// RequireAPIKey guards routes with basic credentials. The client id travels
// as the basic-auth username and the api key as the password.
func RequireAPIKey(verifier *APIKeyVerifier, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, apiKey, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="taplist"`)
				httputil.WriteUnauthorized(w, "unauthorized")
				return
			}

			if err := verifier.Verify(r.Context(), clientID, apiKey); err != nil {
				logger.WithField("client_id", clientID).Warn("basic auth rejected")
				httputil.WriteDomainError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireBearer guards routes with directory bearer tokens. On success the
// authenticated principal is attached to the request context.
func RequireBearer(verifier *BearerVerifier, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken := extractBearerToken(r)
			if rawToken == "" {
				httputil.WriteUnauthorized(w, "unauthorized")
				return
			}

			principal, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				logger.Warn("bearer auth rejected")
				httputil.WriteDomainError(w, err)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
