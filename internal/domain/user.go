package domain

import "time"

// Provider identifies how a user's identity is sourced.
const (
	ProviderLocal = "local"
)

// Default role granted to self-registered accounts.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an end user that can authenticate.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	AvatarURL    string
	Enabled      bool
	Provider     string
	ProviderID   string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user carries the named role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
