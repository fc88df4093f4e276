package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultNonceTTL bounds how long an issued nonce may be consumed.
	DefaultNonceTTL = 5 * time.Minute
	// DefaultSessionTTL is the lifetime of a minted session.
	DefaultSessionTTL = 7 * 24 * time.Hour

	nonceBytes        = 16
	sessionTokenBytes = 32
)

// Options configures issued nonces and sessions.
type Options struct {
	NonceTTL   time.Duration
	SessionTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.NonceTTL == 0 {
		o.NonceTTL = DefaultNonceTTL
	}
	if o.SessionTTL == 0 {
		o.SessionTTL = DefaultSessionTTL
	}
	return o
}

// Service orchestrates wallet authentication: nonce issuance and consumption,
// signature verification, identity resolution, and session lifecycle. It is
// the only component allowed to create user records from credentials.
type Service struct {
	opts     Options
	nonces   NonceStore
	users    UserStore
	sessions SessionStore
	activity ActivityStore
	verifier SignatureVerifier
	log      logrus.FieldLogger
}

// NewService wires the stores and the signature primitive together.
func NewService(opts Options, nonces NonceStore, users UserStore, sessions SessionStore, verifier SignatureVerifier) *Service {
	return &Service{
		opts:     opts.withDefaults(),
		nonces:   nonces,
		users:    users,
		sessions: sessions,
		verifier: verifier,
		log:      logrus.StandardLogger(),
	}
}

// WithActivityLog attaches a best-effort activity sink.
func (s *Service) WithActivityLog(a ActivityStore) *Service { s.activity = a; return s }

// WithLogger replaces the default logger.
func (s *Service) WithLogger(l logrus.FieldLogger) *Service {
	if l != nil {
		s.log = l
	}
	return s
}

// Options returns the effective configuration.
func (s *Service) Options() Options { return s.opts }

// IssueNonce generates and persists a single-use nonce for address.
func (s *Service) IssueNonce(ctx context.Context, address string) (string, error) {
	nonce := randB64(nonceBytes)
	expiresAt := time.Now().Add(s.opts.NonceTTL)
	if err := s.nonces.Save(ctx, NormalizeAddress(address), nonce, expiresAt); err != nil {
		return "", fmt.Errorf("%w: save nonce: %v", ErrStorage, err)
	}
	return nonce, nil
}

// SignatureLogin turns a one-shot signature credential into a session.
// Steps run in order and short-circuit on the first failure; the nonce is
// consumed in step one and stays consumed even if a later step fails, so a
// failed attempt cannot retry against the same nonce.
func (s *Service) SignatureLogin(ctx context.Context, cred Credential, meta Metadata) (*LoginResult, error) {
	address := NormalizeAddress(cred.Address)
	ok, err := s.nonces.Consume(ctx, address, cred.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: consume nonce: %v", ErrStorage, err)
	}
	if !ok {
		return nil, ErrInvalidNonce
	}

	// The signed message must embed the nonce, binding the signature to
	// this challenge rather than any previously signed text.
	if !strings.Contains(cred.Message, cred.Nonce) {
		return nil, ErrInvalidSignature
	}

	ok, err = s.verifier.Verify(ctx, cred.Message, cred.Signature, cred.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: verify signature: %v", ErrStorage, err)
	}
	if !ok {
		return nil, ErrInvalidSignature
	}

	user, err := s.users.ResolveOrCreate(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve user: %v", ErrStorage, err)
	}

	sess := &Session{
		UserID:    user.ID,
		Token:     randB64(sessionTokenBytes),
		ExpiresAt: time.Now().Add(s.opts.SessionTTL),
	}
	if meta.IP != "" {
		sess.IPAddr = &meta.IP
	}
	if meta.UserAgent != "" {
		sess.UserAgent = &meta.UserAgent
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: create session: %v", ErrStorage, err)
	}

	// Login bookkeeping and activity records are observability, not
	// security controls: failures are logged and swallowed.
	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("touch login failed")
	}
	s.LogActivity(ctx, user.ID, "login", map[string]any{"method": "signature"}, meta.IP)

	return &LoginResult{SessionToken: sess.Token, ExpiresAt: sess.ExpiresAt, User: user}, nil
}

// ValidateSession resolves a presented session token, or ErrInvalidSession.
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrMissingCredential
	}
	sess, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: validate session: %v", ErrStorage, err)
	}
	if sess == nil {
		return nil, ErrInvalidSession
	}
	return sess, nil
}

// Logout invalidates the session server-side. Clearing the client cookie
// alone would leave a stolen token valid until natural expiry.
func (s *Service) Logout(ctx context.Context, token string) error {
	sess, err := s.ValidateSession(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.Invalidate(ctx, token); err != nil {
		return fmt.Errorf("%w: invalidate session: %v", ErrStorage, err)
	}
	s.LogActivity(ctx, sess.UserID, "logout", nil, "")
	return nil
}

// GetUser fetches a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", ErrStorage, err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// ResolveOrCreateUser exposes identity resolution for access-grant flows,
// where granting to a never-seen address creates its user record.
func (s *Service) ResolveOrCreateUser(ctx context.Context, address string) (*User, error) {
	u, err := s.users.ResolveOrCreate(ctx, NormalizeAddress(address))
	if err != nil {
		return nil, fmt.Errorf("%w: resolve user: %v", ErrStorage, err)
	}
	return u, nil
}

// UpdateProfile applies a partial profile update.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (*User, error) {
	u, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: update profile: %v", ErrStorage, err)
	}
	s.LogActivity(ctx, userID, "profile_updated", nil, "")
	return u, nil
}

// LogActivity records a wallet activity event. Best-effort.
func (s *Service) LogActivity(ctx context.Context, userID int64, activity string, details map[string]any, ip string) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, userID, activity, details, ip); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID,
			"activity": activity,
		}).Error("activity log failed")
	}
}

// PurgeExpiredAuthRecords deletes expired nonces and sessions that expired or
// were invalidated more than retention ago. Used by the periodic purge job.
func (s *Service) PurgeExpiredAuthRecords(ctx context.Context, retention time.Duration) (nonces, sessions int64, err error) {
	nonces, err = s.nonces.PurgeExpired(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("purge nonces: %w", err)
	}
	sessions, err = s.sessions.PurgeExpired(ctx, time.Now().Add(-retention))
	if err != nil {
		return nonces, 0, fmt.Errorf("purge sessions: %w", err)
	}
	return nonces, sessions, nil
}

// NormalizeAddress canonicalizes a wallet address for storage and lookup.
// Sui addresses are hex and case-insensitive, so every store key and user
// record uses the lower-case form; signature verification stays tolerant of
// whatever casing the client sent.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func randB64(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
