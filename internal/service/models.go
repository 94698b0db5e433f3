package service

import "time"

// UserProfile is the public projection of an account. Password hash and
// provider internals never cross the boundary.
type UserProfile struct {
	ID        int64     `json:"id,string"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstname"`
	LastName  string    `json:"lastname"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Roles     []string  `json:"roles"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoginResult carries both freshly minted tokens. The handler moves the
// refresh token into an http-only cookie and strips it from the body.
type LoginResult struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	ExpiresInMS  int64       `json:"expiresInMS"`
	User         UserProfile `json:"user"`
}

// RefreshResult carries the replacement access token.
type RefreshResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresInMS int64  `json:"expiresInMS"`
}

// VerifyOTPResult carries the reset grant exchanged for a password reset.
type VerifyOTPResult struct {
	ResetToken string `json:"resetToken"`
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}
