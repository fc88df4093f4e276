package core

import "errors"

// Authentication failures. Every failure mode has a stable sentinel so the
// HTTP adapter can map it to a machine-readable rejection without leaking
// internals to the client.
var (
	// ErrMissingCredential reports that no credential was presented at all.
	ErrMissingCredential = errors.New("missing_credential")

	// ErrInvalidNonce reports a nonce that is absent, expired, or already
	// consumed. A nonce burned by a failed attempt stays burned.
	ErrInvalidNonce = errors.New("invalid_nonce")

	// ErrInvalidSignature reports a signature that does not verify for the
	// claimed address and message.
	ErrInvalidSignature = errors.New("invalid_signature")

	// ErrInvalidSession reports a session token that is unknown, expired,
	// or invalidated.
	ErrInvalidSession = errors.New("invalid_session")

	// ErrStorage wraps persistence failures. Never treated as success.
	ErrStorage = errors.New("storage_error")
)

// ErrUserNotFound reports a lookup for a user that does not exist.
var ErrUserNotFound = errors.New("user_not_found")
