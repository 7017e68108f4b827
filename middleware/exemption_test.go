package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExemptionPolicy_Default(t *testing.T) {
	policy := DefaultExemptionPolicy()

	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/error", true},
		{"/index.html", true},
		{"/signup", true},
		{"/signin", true},
		{"/refresh", true},
		{"/welcome.html", true},
		{"/webjars/", true},
		{"/webjars/jquery/jquery.min.js", true},

		// exact matches only
		{"/signin/", false},
		{"/signup/extra", false},
		{"/index.html.bak", false},
		{"/webjars", false},

		// deny by default
		{"/blogs", false},
		{"/test", false},
		{"/refresh/", false},
		{"/user/me", false},
		{"/role/all", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.IsExempt(tt.path))
		})
	}
}

func TestExemptionPolicy_Extra(t *testing.T) {
	policy := NewExemptionPolicy(" /status ", "/docs/", "")

	assert.True(t, policy.IsExempt("/status"))
	assert.True(t, policy.IsExempt("/docs/openapi.json"))
	assert.False(t, policy.IsExempt("/docs"))
	assert.True(t, policy.IsExempt("/signin"), "built-in paths are kept")
	assert.True(t, policy.IsExempt("/refresh"), "built-in paths are kept")
	assert.False(t, policy.IsExempt("/blogs"))
}

func TestExemptionPolicy_Paths(t *testing.T) {
	policy := NewExemptionPolicy("/refresh", "/webjars/")

	assert.Equal(t, []string{
		"/", "/error", "/index.html", "/refresh", "/signin", "/signup", "/webjars/**", "/welcome.html",
	}, policy.Paths())
}
