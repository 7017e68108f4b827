package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/cloud-tracker/utils"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SigninLimiter throttles sign-in attempts per client address with a token bucket
type SigninLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
	logger   *zap.Logger

	// forwarding headers are honoured only from these peers
	trustedProxies []netip.Prefix
}

// SigninLimiterOption configures a SigninLimiter
type SigninLimiterOption func(*SigninLimiter)

// WithTrustedProxies makes the limiter key on the forwarded client address
// for requests whose socket peer falls inside one of the prefixes
func WithTrustedProxies(prefixes ...netip.Prefix) SigninLimiterOption {
	return func(l *SigninLimiter) {
		l.trustedProxies = append(l.trustedProxies, prefixes...)
	}
}

// ParseTrustedProxies parses CIDR prefixes or bare addresses
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(v); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q", v)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// NewSigninLimiter allows perMinute attempts per client with the given burst
func NewSigninLimiter(perMinute, burst int, logger *zap.Logger, opts ...SigninLimiterOption) *SigninLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 1
	}
	l := &SigninLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether one more attempt from key is permitted now.
// When it is not, the returned duration is the suggested wait.
func (l *SigninLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	limiter := l.get(key, now)

	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	reservation.CancelAt(now)
	return false, delay
}

func (l *SigninLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Prune drops clients idle for longer than maxIdle and returns how many were removed
func (l *SigninLimiter) Prune(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxIdle)
	removed := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// Handler is a middleware that answers 429 once a client exceeds its budget
func (l *SigninLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.clientKey(r)
		allowed, retryAfter := l.Allow(key)
		if !allowed {
			l.logger.Warn("sign-in rate limit exceeded",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("client", key))
			seconds := int(retryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			_ = utils.WriteTooManyRequests(w, "Too many sign-in attempts", map[string]interface{}{
				"retry_after_seconds": seconds,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey returns the address a request is throttled under. That is the
// socket peer, unless the peer is a trusted proxy, in which case it is the
// forwarded address chi's RealIP wrote into RemoteAddr.
func (l *SigninLimiter) clientKey(r *http.Request) string {
	peer := GetPeerAddrFromContext(r.Context())
	if peer == "" {
		peer = r.RemoteAddr
	}
	peerHost := hostOf(peer)

	if l.isTrustedProxy(peerHost) {
		return hostOf(r.RemoteAddr)
	}
	return peerHost
}

func (l *SigninLimiter) isTrustedProxy(host string) bool {
	if len(l.trustedProxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range l.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
