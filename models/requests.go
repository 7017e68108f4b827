package models

// SignupRequest is the body of POST /signup
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
}

// SigninRequest is the body of POST /signin
type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the body of POST /refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPair is returned by sign-in and refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// UserProfileRequest is the body of PUT /user/profile
type UserProfileRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Name  string `json:"name" validate:"required,max=100"`
	Image string `json:"image" validate:"omitempty,max=2048"`
}

// ProfileUpdate is the result of a profile edit. Tokens is set when the email changed,
// since tokens issued for the old email no longer resolve.
type ProfileUpdate struct {
	User   *User      `json:"user"`
	Tokens *TokenPair `json:"tokens,omitempty"`
}

// PasswordUpdateRequest is the body of PUT /user/password
type PasswordUpdateRequest struct {
	CurrentPassword    string `json:"current_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required,min=8,max=72"`
	ConfirmNewPassword string `json:"confirm_new_password" validate:"required"`
}

// AddRoleRequest is the body of POST /role
type AddRoleRequest struct {
	ARN string `json:"arn" validate:"required"`
}
