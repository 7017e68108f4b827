package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/cloud-tracker/internal/observability"
	"github.com/example/cloud-tracker/models"
	"github.com/example/cloud-tracker/services"
	"github.com/example/cloud-tracker/utils"
)

const bearerPrefix = "Bearer "

// Messages written by the JWT filter
const (
	MessageNoBearer     = "JWT Token does not begin with Bearer String"
	MessageInvalidToken = "JWT Token is not valid"
)

// TokenCodec decodes and checks bearer tokens
type TokenCodec interface {
	// ExtractSubject returns the token subject once the signature verifies
	ExtractSubject(token string) (string, error)

	// IsValid reports whether the token is current and issued for the principal
	IsValid(token string, principal *models.Principal) bool
}

// PrincipalStore loads principals by the identifier carried in tokens
type PrincipalStore interface {
	// LoadByIdentifier returns an error matching services.ErrPrincipalNotFound when absent
	LoadByIdentifier(ctx context.Context, identifier string) (*models.Principal, error)
}

// FailurePolicy decides how the filter answers a token that fails after the header check
type FailurePolicy int

const (
	// FailurePropagate hands malformed tokens and unknown principals to the error
	// handler (500) and lets invalid tokens through unauthenticated.
	FailurePropagate FailurePolicy = iota

	// FailureStrict answers every authentication failure with 401.
	FailureStrict
)

// ErrorHandler writes the response for an error the filter does not recover from
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// JWTFilterOption configures a JWTFilter
type JWTFilterOption func(*JWTFilter)

// WithFailurePolicy sets the failure policy
func WithFailurePolicy(policy FailurePolicy) JWTFilterOption {
	return func(f *JWTFilter) {
		f.policy = policy
	}
}

// WithLookupTimeout bounds each principal lookup. Zero disables the bound.
func WithLookupTimeout(d time.Duration) JWTFilterOption {
	return func(f *JWTFilter) {
		f.lookupTimeout = d
	}
}

// WithAuthMetrics records filter outcomes
func WithAuthMetrics(m *observability.AuthMetrics) JWTFilterOption {
	return func(f *JWTFilter) {
		f.metrics = m
	}
}

// WithErrorHandler replaces the handler used for propagated errors
func WithErrorHandler(h ErrorHandler) JWTFilterOption {
	return func(f *JWTFilter) {
		if h != nil {
			f.onError = h
		}
	}
}

// JWTFilter authenticates requests carrying an "Authorization: Bearer" token
type JWTFilter struct {
	codec         TokenCodec
	store         PrincipalStore
	exemptions    *ExemptionPolicy
	logger        *zap.Logger
	policy        FailurePolicy
	lookupTimeout time.Duration
	metrics       *observability.AuthMetrics
	onError       ErrorHandler
}

// NewJWTFilter creates a new JWTFilter. A nil exemption policy selects the default set.
func NewJWTFilter(codec TokenCodec, store PrincipalStore, exemptions *ExemptionPolicy, logger *zap.Logger, opts ...JWTFilterOption) *JWTFilter {
	if exemptions == nil {
		exemptions = DefaultExemptionPolicy()
	}
	f := &JWTFilter{
		codec:      codec,
		store:      store,
		exemptions: exemptions,
		logger:     logger,
		policy:     FailurePropagate,
	}
	f.onError = f.writeInternalError
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Handler wraps next with the filter. next is invoked at most once per request
// and never after the filter has written a response.
func (f *JWTFilter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.exemptions.IsExempt(r.URL.Path) {
			f.metrics.RecordOutcome(observability.OutcomeExempt)
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		logger := observability.WithRequest(ctx, f.logger).With(zap.String("path", r.URL.Path))

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			f.metrics.RecordOutcome(observability.OutcomeRejectedNoBearer)
			logger.Debug("missing bearer token")
			_ = utils.WriteUnauthorized(w, MessageNoBearer)
			return
		}
		raw := strings.TrimPrefix(header, bearerPrefix)

		subject, err := f.codec.ExtractSubject(raw)
		if err != nil {
			f.metrics.RecordOutcome(observability.OutcomeMalformed)
			logger.Warn("malformed token", zap.Error(err))
			f.fail(w, r, err)
			return
		}

		if subject == "" {
			f.metrics.RecordOutcome(observability.OutcomeAnonymous)
			next.ServeHTTP(w, r)
			return
		}

		if GetAuthenticationFromContext(ctx) != nil {
			f.metrics.RecordOutcome(observability.OutcomeAlreadyAuthenticated)
			next.ServeHTTP(w, r)
			return
		}

		principal, err := f.loadPrincipal(ctx, subject)
		if err != nil {
			if !services.IsNotFoundError(err) {
				f.metrics.RecordOutcome(observability.OutcomeError)
				logger.Error("principal lookup failed", zap.String("subject", subject), zap.Error(err))
				f.onError(w, r, err)
				return
			}
			f.metrics.RecordOutcome(observability.OutcomePrincipalNotFound)
			logger.Warn("token subject not found", zap.String("subject", subject))
			f.fail(w, r, err)
			return
		}

		if !f.codec.IsValid(raw, principal) {
			f.metrics.RecordOutcome(observability.OutcomeInvalid)
			logger.Info("token is not valid", zap.String("subject", subject))
			if f.policy == FailureStrict {
				_ = utils.WriteUnauthorized(w, MessageInvalidToken)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		auth := &Authentication{
			Principal:   principal,
			Authorities: append([]string(nil), principal.Authorities...),
			Details: AuthenticationDetails{
				RemoteAddr: r.RemoteAddr,
				RequestID:  GetRequestIDFromContext(ctx),
				UserAgent:  r.UserAgent(),
			},
		}
		f.metrics.RecordOutcome(observability.OutcomeAuthenticated)
		logger.Debug("authentication successful", zap.String("subject", subject))

		next.ServeHTTP(w, r.WithContext(WithAuthentication(ctx, auth)))
	})
}

func (f *JWTFilter) loadPrincipal(ctx context.Context, subject string) (*models.Principal, error) {
	if f.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.lookupTimeout)
		defer cancel()
	}

	start := time.Now()
	principal, err := f.store.LoadByIdentifier(ctx, subject)
	f.metrics.ObserveLookup(time.Since(start), err)
	if err == nil && principal == nil {
		err = services.ErrPrincipalNotFound
	}
	return principal, err
}

// fail answers a malformed token or unknown principal according to the policy
func (f *JWTFilter) fail(w http.ResponseWriter, r *http.Request, err error) {
	if f.policy == FailureStrict {
		_ = utils.WriteUnauthorized(w, MessageInvalidToken)
		return
	}
	f.onError(w, r, err)
}

func (f *JWTFilter) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		_ = utils.WriteError(w, http.StatusServiceUnavailable, "Authentication backend timed out", nil)
		return
	}
	_ = utils.WriteInternalServerError(w, "")
}
