package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Kind distinguishes short-lived access tokens from long-lived refresh tokens
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims represents the claims carried by every token the codec issues
type Claims struct {
	jwt.RegisteredClaims
	Kind Kind `json:"typ"`
}

// IsAccess reports whether the claims belong to an access token
func (c *Claims) IsAccess() bool {
	return c.Kind == KindAccess
}

// IsRefresh reports whether the claims belong to a refresh token
func (c *Claims) IsRefresh() bool {
	return c.Kind == KindRefresh
}
