// Package pgstore implements the core stores on Postgres via pgx. All
// concurrency-sensitive operations (nonce consumption, user creation) are
// single statements so the guarantees hold across server instances. Wallet
// addresses are normalized on write and lookup so client casing never
// splits an identity across rows.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fOmar24/Medical-Research-Data-Sharing/core"
)

// NonceStore persists nonces in wallet_nonces.
type NonceStore struct {
	pg *pgxpool.Pool
}

func NewNonceStore(pg *pgxpool.Pool) *NonceStore { return &NonceStore{pg: pg} }

func (s *NonceStore) Save(ctx context.Context, address, nonce string, expiresAt time.Time) error {
	_, err := s.pg.Exec(ctx, `
		INSERT INTO wallet_nonces (wallet_address, nonce, expires_at)
		VALUES ($1, $2, $3)
	`, core.NormalizeAddress(address), nonce, expiresAt)
	return err
}

// Consume is a single conditional UPDATE: the WHERE guard makes the
// check-and-mark atomic, so of any number of racing callers exactly one
// observes a row change.
func (s *NonceStore) Consume(ctx context.Context, address, nonce string) (bool, error) {
	tag, err := s.pg.Exec(ctx, `
		UPDATE wallet_nonces
		SET used = TRUE
		WHERE wallet_address = $1 AND nonce = $2 AND used = FALSE AND expires_at > now()
	`, core.NormalizeAddress(address), nonce)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *NonceStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pg.Exec(ctx, `DELETE FROM wallet_nonces WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UserStore persists identities in users.
type UserStore struct {
	pg *pgxpool.Pool
}

func NewUserStore(pg *pgxpool.Pool) *UserStore { return &UserStore{pg: pg} }

const userColumns = `id, wallet_address, name, email, organization, created_at, last_login, login_count`

// ResolveOrCreate upserts on the wallet_address unique constraint. The no-op
// DO UPDATE lets the statement RETURN the existing row, so racing callers for
// a new address all observe the single created record.
func (s *UserStore) ResolveOrCreate(ctx context.Context, address string) (*core.User, error) {
	row := s.pg.QueryRow(ctx, `
		INSERT INTO users (wallet_address) VALUES ($1)
		ON CONFLICT (wallet_address) DO UPDATE SET wallet_address = EXCLUDED.wallet_address
		RETURNING `+userColumns, core.NormalizeAddress(address))
	return scanUser(row)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*core.User, error) {
	row := s.pg.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *UserStore) GetByAddress(ctx context.Context, address string) (*core.User, error) {
	row := s.pg.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_address = $1`, core.NormalizeAddress(address))
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// UpdateProfile uses COALESCE so nil fields keep their stored values.
func (s *UserStore) UpdateProfile(ctx context.Context, id int64, upd core.ProfileUpdate) (*core.User, error) {
	row := s.pg.QueryRow(ctx, `
		UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    organization = COALESCE($4, organization),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, upd.Name, upd.Email, upd.Organization)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	return u, err
}

func (s *UserStore) TouchLogin(ctx context.Context, id int64) error {
	_, err := s.pg.Exec(ctx, `
		UPDATE users SET last_login = now(), login_count = login_count + 1 WHERE id = $1
	`, id)
	return err
}

func scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.WalletAddress, &u.Name, &u.Email, &u.Organization,
		&u.CreatedAt, &u.LastLogin, &u.LoginCount); err != nil {
		return nil, err
	}
	return &u, nil
}

// SessionStore persists sessions in wallet_sessions.
type SessionStore struct {
	pg *pgxpool.Pool
}

func NewSessionStore(pg *pgxpool.Pool) *SessionStore { return &SessionStore{pg: pg} }

func (s *SessionStore) Save(ctx context.Context, sess *core.Session) error {
	return s.pg.QueryRow(ctx, `
		INSERT INTO wallet_sessions (user_id, session_token, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, sess.UserID, sess.Token, sess.ExpiresAt, sess.IPAddr, sess.UserAgent).Scan(&sess.ID, &sess.CreatedAt)
}

// Validate enforces expiry and invalidation in the query itself, so a stale
// row that has not been purged can never come back as a live session.
func (s *SessionStore) Validate(ctx context.Context, token string) (*core.Session, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT ws.id, ws.user_id, ws.session_token, ws.expires_at, ws.created_at,
		       ws.invalidated_at, ws.ip_address, ws.user_agent,
		       u.wallet_address, u.name, u.email
		FROM wallet_sessions ws
		JOIN users u ON u.id = ws.user_id
		WHERE ws.session_token = $1
		  AND ws.expires_at > now()
		  AND ws.invalidated_at IS NULL
	`, token)
	var sess core.Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Token, &sess.ExpiresAt, &sess.CreatedAt,
		&sess.InvalidatedAt, &sess.IPAddr, &sess.UserAgent,
		&sess.WalletAddress, &sess.Name, &sess.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	_, err := s.pg.Exec(ctx, `
		UPDATE wallet_sessions SET invalidated_at = now()
		WHERE session_token = $1 AND invalidated_at IS NULL
	`, token)
	return err
}

func (s *SessionStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pg.Exec(ctx, `
		DELETE FROM wallet_sessions
		WHERE expires_at < $1 OR invalidated_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ActivityStore appends to wallet_activity.
type ActivityStore struct {
	pg *pgxpool.Pool
}

func NewActivityStore(pg *pgxpool.Pool) *ActivityStore { return &ActivityStore{pg: pg} }

func (s *ActivityStore) Record(ctx context.Context, userID int64, activity string, details map[string]any, ip string) error {
	if details == nil {
		details = map[string]any{}
	}
	buf, err := json.Marshal(details)
	if err != nil {
		return err
	}
	var ipPtr *string
	if ip != "" {
		ipPtr = &ip
	}
	_, err = s.pg.Exec(ctx, `
		INSERT INTO wallet_activity (user_id, activity_type, details, ip_address)
		VALUES ($1, $2, $3, $4)
	`, userID, activity, buf, ipPtr)
	return err
}
