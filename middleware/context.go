package middleware

import (
	"context"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/example/cloud-tracker/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// AuthenticationKey is the context key for the authenticated principal
	AuthenticationKey contextKey = "authentication"

	// PeerAddrKey is the context key for the socket address of the connection
	PeerAddrKey contextKey = "peer_addr"
)

// AuthenticationDetails records where an authenticated request came from
type AuthenticationDetails struct {
	RemoteAddr string `json:"remote_addr"`
	RequestID  string `json:"request_id,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// Authentication is the request-scoped result of a successful token check.
// It is created once per request by the JWT filter and never shared.
type Authentication struct {
	Principal   *models.Principal
	Authorities []string
	Details     AuthenticationDetails
}

// HasAuthority reports whether the authentication carries the authority
func (a *Authentication) HasAuthority(authority string) bool {
	for _, granted := range a.Authorities {
		if granted == authority {
			return true
		}
	}
	return false
}

// GetRequestIDFromContext retrieves the request ID from context,
// falling back to the ID assigned by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return chimiddleware.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetAuthenticationFromContext retrieves the authentication from context
func GetAuthenticationFromContext(ctx context.Context) *Authentication {
	if val := ctx.Value(AuthenticationKey); val != nil {
		if auth, ok := val.(*Authentication); ok {
			return auth
		}
	}
	return nil
}

// WithAuthentication adds an authentication to the context
func WithAuthentication(ctx context.Context, auth *Authentication) context.Context {
	return context.WithValue(ctx, AuthenticationKey, auth)
}

// GetPrincipalFromContext returns the authenticated principal, or nil for anonymous requests
func GetPrincipalFromContext(ctx context.Context) *models.Principal {
	if auth := GetAuthenticationFromContext(ctx); auth != nil {
		return auth.Principal
	}
	return nil
}

// IsAuthenticated reports whether the request carries an authentication
func IsAuthenticated(ctx context.Context) bool {
	return GetPrincipalFromContext(ctx) != nil
}

// PeerAddr records the connection's socket address before any middleware
// rewrites RemoteAddr from forwarding headers. Mount it ahead of chi's RealIP.
func PeerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithPeerAddr(r.Context(), r.RemoteAddr)))
	})
}

// WithPeerAddr adds the socket address to the context
func WithPeerAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, PeerAddrKey, addr)
}

// GetPeerAddrFromContext returns the socket address recorded by PeerAddr, or ""
func GetPeerAddrFromContext(ctx context.Context) string {
	if val := ctx.Value(PeerAddrKey); val != nil {
		if addr, ok := val.(string); ok {
			return addr
		}
	}
	return ""
}
