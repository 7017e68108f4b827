package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/example/cloud-tracker/utils"
)

// Authorizer denies requests that the JWT filter left unauthenticated
type Authorizer struct {
	logger *zap.Logger
}

// NewAuthorizer creates a new Authorizer
func NewAuthorizer(logger *zap.Logger) *Authorizer {
	return &Authorizer{logger: logger}
}

// RequireAuthenticated is a middleware that requires an authentication in context
func (a *Authorizer) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthenticated(r.Context()) {
			a.logger.Debug("anonymous request denied",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthority is a middleware that requires a specific authority
func (a *Authorizer) RequireAuthority(authority string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			auth := GetAuthenticationFromContext(ctx)
			if auth == nil {
				_ = utils.WriteUnauthorized(w, "")
				return
			}

			if !auth.HasAuthority(authority) {
				a.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("required_authority", authority),
					zap.Strings("authorities", auth.Authorities))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
