// Package memorystore provides in-memory implementations of the core stores.
// They mirror the atomicity guarantees of the Postgres implementations under a
// mutex and are only suitable for tests and single-node development.
package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/fOmar24/Medical-Research-Data-Sharing/core"
)

type nonceRecord struct {
	expiresAt time.Time
	used      bool
}

// NonceStore keeps nonces in a map keyed by (address, value).
type NonceStore struct {
	mu     sync.Mutex
	nonces map[[2]string]*nonceRecord
}

func NewNonceStore() *NonceStore {
	return &NonceStore{nonces: make(map[[2]string]*nonceRecord)}
}

func (s *NonceStore) Save(ctx context.Context, address, nonce string, expiresAt time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[nonceKey(address, nonce)] = &nonceRecord{expiresAt: expiresAt}
	return nil
}

func (s *NonceStore) Consume(ctx context.Context, address, nonce string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.nonces[nonceKey(address, nonce)]
	if !ok || rec.used || !time.Now().Before(rec.expiresAt) {
		return false, nil
	}
	rec.used = true
	return true, nil
}

func (s *NonceStore) PurgeExpired(ctx context.Context) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var n int64
	for k, rec := range s.nonces {
		if now.After(rec.expiresAt) {
			delete(s.nonces, k)
			n++
		}
	}
	return n, nil
}

func nonceKey(address, nonce string) [2]string {
	return [2]string{core.NormalizeAddress(address), nonce}
}

// UserStore keeps users in a map keyed by normalized wallet address.
type UserStore struct {
	mu     sync.Mutex
	nextID int64
	byAddr map[string]*core.User
	byID   map[int64]*core.User
}

func NewUserStore() *UserStore {
	return &UserStore{
		nextID: 1,
		byAddr: make(map[string]*core.User),
		byID:   make(map[int64]*core.User),
	}
}

func (s *UserStore) ResolveOrCreate(ctx context.Context, address string) (*core.User, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	key := core.NormalizeAddress(address)
	if u, ok := s.byAddr[key]; ok {
		return copyUser(u), nil
	}
	u := &core.User{ID: s.nextID, WalletAddress: key, CreatedAt: time.Now()}
	s.nextID++
	s.byAddr[key] = u
	s.byID[u.ID] = u
	return copyUser(u), nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*core.User, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (s *UserStore) GetByAddress(ctx context.Context, address string) (*core.User, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byAddr[core.NormalizeAddress(address)]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (s *UserStore) UpdateProfile(ctx context.Context, id int64, upd core.ProfileUpdate) (*core.User, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = upd.Name
	}
	if upd.Email != nil {
		u.Email = upd.Email
	}
	if upd.Organization != nil {
		u.Organization = upd.Organization
	}
	return copyUser(u), nil
}

func (s *UserStore) TouchLogin(ctx context.Context, id int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return core.ErrUserNotFound
	}
	now := time.Now()
	u.LastLogin = &now
	u.LoginCount++
	return nil
}

func copyUser(u *core.User) *core.User {
	c := *u
	return &c
}

// SessionStore keeps sessions in a map keyed by token, joined against the
// user store on Validate like the SQL implementation does.
type SessionStore struct {
	mu     sync.Mutex
	nextID int64
	byTok  map[string]*core.Session
	users  *UserStore
}

func NewSessionStore(users *UserStore) *SessionStore {
	return &SessionStore{nextID: 1, byTok: make(map[string]*core.Session), users: users}
}

func (s *SessionStore) Save(ctx context.Context, sess *core.Session) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = s.nextID
	s.nextID++
	sess.CreatedAt = time.Now()
	stored := *sess
	s.byTok[sess.Token] = &stored
	return nil
}

func (s *SessionStore) Validate(ctx context.Context, token string) (*core.Session, error) {
	s.mu.Lock()
	sess, ok := s.byTok[token]
	if !ok || sess.InvalidatedAt != nil || !time.Now().Before(sess.ExpiresAt) {
		s.mu.Unlock()
		return nil, nil
	}
	out := *sess
	s.mu.Unlock()

	if s.users != nil {
		u, err := s.users.GetByID(ctx, out.UserID)
		if err != nil {
			return nil, err
		}
		if u != nil {
			out.WalletAddress = u.WalletAddress
			out.Name = u.Name
			out.Email = u.Email
		}
	}
	return &out, nil
}

func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byTok[token]; ok && sess.InvalidatedAt == nil {
		now := time.Now()
		sess.InvalidatedAt = &now
	}
	return nil
}

func (s *SessionStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for tok, sess := range s.byTok {
		if sess.ExpiresAt.Before(cutoff) || (sess.InvalidatedAt != nil && sess.InvalidatedAt.Before(cutoff)) {
			delete(s.byTok, tok)
			n++
		}
	}
	return n, nil
}

// ActivityEntry is a recorded wallet activity event.
type ActivityEntry struct {
	UserID    int64
	Activity  string
	Details   map[string]any
	IP        string
	CreatedAt time.Time
}

// ActivityStore accumulates activity events in memory.
type ActivityStore struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func NewActivityStore() *ActivityStore { return &ActivityStore{} }

func (s *ActivityStore) Record(ctx context.Context, userID int64, activity string, details map[string]any, ip string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, ActivityEntry{
		UserID:    userID,
		Activity:  activity,
		Details:   details,
		IP:        ip,
		CreatedAt: time.Now(),
	})
	return nil
}

// Entries returns a snapshot of recorded events.
func (s *ActivityStore) Entries() []ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActivityEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
