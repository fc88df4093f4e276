package core

import (
	"context"
	"time"
)

// NonceStore persists single-use authentication nonces. Atomicity of Consume
// is the store's responsibility: two callers racing on the same
// (address, nonce) pair must see exactly one true result, enforced at the
// storage layer (a conditional UPDATE, not an in-process lock) so multiple
// server instances can share one database.
type NonceStore interface {
	// Save persists a freshly issued nonce. Multiple outstanding nonces
	// per address are permitted; (address, nonce) pairs are unique.
	Save(ctx context.Context, address, nonce string, expiresAt time.Time) error

	// Consume atomically checks existence, non-expiry, and unused status,
	// and marks the nonce used. Missing, expired, or already-used nonces
	// report (false, nil); only system failures return an error.
	Consume(ctx context.Context, address, nonce string) (bool, error)

	// PurgeExpired deletes nonces past their expiry and reports how many.
	PurgeExpired(ctx context.Context) (int64, error)
}

// UserStore is the identity registry mapping wallet addresses to user records.
type UserStore interface {
	// ResolveOrCreate returns the user for address, creating a minimal
	// record if none exists. Concurrent calls for a new address must not
	// create duplicates (unique constraint plus upsert semantics).
	ResolveOrCreate(ctx context.Context, address string) (*User, error)

	GetByID(ctx context.Context, id int64) (*User, error)
	GetByAddress(ctx context.Context, address string) (*User, error)

	// UpdateProfile applies a partial profile update and returns the
	// updated record. Returns ErrUserNotFound for an unknown id.
	UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*User, error)

	// TouchLogin bumps last_login and the login counter. Observability
	// side effect; callers may ignore failures.
	TouchLogin(ctx context.Context, id int64) error
}

// SessionStore persists bearer sessions.
type SessionStore interface {
	// Save persists a new session record and fills in its storage id.
	Save(ctx context.Context, s *Session) error

	// Validate returns the session with its owner's identity joined in,
	// or nil when the token is unknown, expired, or invalidated. It must
	// never return a session past expiry, purged or not.
	Validate(ctx context.Context, token string) (*Session, error)

	// Invalidate marks a session unusable for all future Validate calls.
	Invalidate(ctx context.Context, token string) error

	// PurgeExpired deletes sessions that expired or were invalidated
	// before the cutoff and reports how many.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActivityStore records wallet activity (logins, logouts, profile changes).
// Best-effort: callers log and swallow failures.
type ActivityStore interface {
	Record(ctx context.Context, userID int64, activity string, details map[string]any, ip string) error
}

// SignatureVerifier is the chain's native signature primitive. It reports
// whether signature was produced over message by the key controlling address,
// treating malformed input as a plain false.
type SignatureVerifier interface {
	Verify(ctx context.Context, message, signature, address string) (bool, error)
}
