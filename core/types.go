package core

import "time"

// User is an identity record keyed by wallet address. Users are created
// lazily: on first successful authentication, or the first time another user
// grants their address access to a dataset. They are never hard-deleted.
type User struct {
	ID            int64      `json:"id"`
	WalletAddress string     `json:"walletAddress"`
	Name          *string    `json:"name,omitempty"`
	Email         *string    `json:"email,omitempty"`
	Organization  *string    `json:"organization,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	LoginCount    int        `json:"loginCount"`
}

// ProfileUpdate is a partial update of profile fields. Nil pointers leave the
// stored value unchanged.
type ProfileUpdate struct {
	Name         *string
	Email        *string
	Organization *string
}

// Session is a server-side session record. A session is valid iff the current
// time is before ExpiresAt and InvalidatedAt is unset.
type Session struct {
	ID            int64
	UserID        int64
	Token         string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	InvalidatedAt *time.Time
	IPAddr        *string
	UserAgent     *string

	// Identity joined in by Validate so the authorization gate does not
	// need a second lookup.
	WalletAddress string
	Name          *string
	Email         *string
}

// Metadata captures client attributes recorded when a session is minted.
type Metadata struct {
	IP        string
	UserAgent string
}

// LoginResult is returned by a successful signature login.
type LoginResult struct {
	SessionToken string
	ExpiresAt    time.Time
	User         *User
}
