package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/cloud-tracker/models"
)

var (
	// ErrMalformedToken is returned when a token cannot be parsed or its signature does not verify
	ErrMalformedToken = errors.New("malformed token")

	// ErrInvalidToken is returned when a well-formed token is not acceptable for the requested use
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrMissingSecret is returned when the codec has no signing secret
	ErrMissingSecret = errors.New("signing secret is required")
)

var signingMethod = jwt.SigningMethodHS256

// Config holds configuration for Codec
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Clock overrides time.Now, mainly for tests
	Clock func() time.Time
}

// Codec issues and validates HMAC signed bearer tokens.
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec creates a new token codec
func NewCodec(config Config) (*Codec, error) {
	if config.Secret == "" {
		return nil, ErrMissingSecret
	}
	if config.AccessTTL == 0 {
		config.AccessTTL = 15 * time.Minute
	}
	if config.RefreshTTL == 0 {
		config.RefreshTTL = 7 * 24 * time.Hour
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Codec{
		secret:     []byte(config.Secret),
		issuer:     config.Issuer,
		accessTTL:  config.AccessTTL,
		refreshTTL: config.RefreshTTL,
		now:        config.Clock,
	}, nil
}

// IssueAccessToken signs a short-lived access token for the principal
func (c *Codec) IssueAccessToken(p *models.Principal) (string, error) {
	return c.issue(p, KindAccess, c.accessTTL)
}

// IssueRefreshToken signs a long-lived refresh token for the principal
func (c *Codec) IssueRefreshToken(p *models.Principal) (string, error) {
	return c.issue(p, KindRefresh, c.refreshTTL)
}

func (c *Codec) issue(p *models.Principal, kind Kind, ttl time.Duration) (string, error) {
	if p == nil || p.Identifier == "" {
		return "", fmt.Errorf("%w: principal identifier is empty", ErrInvalidToken)
	}

	now := c.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   p.Identifier,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

// ExtractSubject returns the subject of a token whose signature verifies.
// Expiry is not checked; an empty subject is returned as "" without error.
func (c *Codec) ExtractSubject(tokenString string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, c.keyFunc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims.Subject, nil
}

// IsValid reports whether the token is a current access token issued for the principal
func (c *Codec) IsValid(tokenString string, p *models.Principal) bool {
	if p == nil || p.Identifier == "" {
		return false
	}

	claims, err := c.parse(tokenString, jwt.WithSubject(p.Identifier))
	if err != nil {
		return false
	}
	return claims.IsAccess()
}

// ParseRefreshToken fully validates a refresh token and returns its subject
func (c *Codec) ParseRefreshToken(tokenString string) (string, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenMalformed) || errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
			errors.Is(err, jwt.ErrTokenUnverifiable) {
			return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !claims.IsRefresh() {
		return "", fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: subject is empty", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// parse verifies signature, expiry and issuer
func (c *Codec) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}, opts...)
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, c.keyFunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return c.secret, nil
}
