package core_test

import (
	"context"
	"crypto/ed25519"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fOmar24/Medical-Research-Data-Sharing/core"
	memorystore "github.com/fOmar24/Medical-Research-Data-Sharing/storage/memory"
	"github.com/fOmar24/Medical-Research-Data-Sharing/suiwallet"
)

type env struct {
	svc      *core.Service
	nonces   *memorystore.NonceStore
	users    *memorystore.UserStore
	sessions *memorystore.SessionStore
	activity *memorystore.ActivityStore
	priv     ed25519.PrivateKey
	address  string
}

func newEnv(t *testing.T, opts core.Options) *env {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	nonces := memorystore.NewNonceStore()
	users := memorystore.NewUserStore()
	sessions := memorystore.NewSessionStore(users)
	activity := memorystore.NewActivityStore()

	svc := core.NewService(opts, nonces, users, sessions, &suiwallet.Verifier{}).
		WithActivityLog(activity)

	return &env{
		svc:      svc,
		nonces:   nonces,
		users:    users,
		sessions: sessions,
		activity: activity,
		priv:     priv,
		address:  suiwallet.DeriveAddress(pub),
	}
}

// credential signs a message embedding the nonce, the way a wallet client
// does.
func (e *env) credential(t *testing.T, nonce string) core.Credential {
	t.Helper()
	msg := "Sign in to MedShare: " + nonce
	return core.Credential{
		Address:   e.address,
		Signature: suiwallet.SignPersonalMessage(e.priv, []byte(msg)),
		Message:   msg,
		Nonce:     nonce,
	}
}

func TestSignatureLoginHappyPath(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{})

	nonce, err := e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)
	require.NotEmpty(t, nonce)

	res, err := e.svc.SignatureLogin(ctx, e.credential(t, nonce), core.Metadata{IP: "203.0.113.9"})
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionToken)
	require.True(t, res.ExpiresAt.After(time.Now()))
	require.Equal(t, e.address, res.User.WalletAddress)

	sess, err := e.svc.ValidateSession(ctx, res.SessionToken)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, sess.UserID)
	require.Equal(t, e.address, sess.WalletAddress)
}

func TestSignatureLoginNonceIsSingleUse(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{})

	nonce, err := e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)
	cred := e.credential(t, nonce)

	_, err = e.svc.SignatureLogin(ctx, cred, core.Metadata{})
	require.NoError(t, err)

	// Same credential replayed: nonce already consumed.
	_, err = e.svc.SignatureLogin(ctx, cred, core.Metadata{})
	require.ErrorIs(t, err, core.ErrInvalidNonce)
}

func TestSignatureLoginBurnsNonceOnBadSignature(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{})

	nonce, err := e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)

	bad := e.credential(t, nonce)
	bad.Signature = "AAAA"
	_, err = e.svc.SignatureLogin(ctx, bad, core.Metadata{})
	require.ErrorIs(t, err, core.ErrInvalidSignature)

	// The failed attempt consumed the nonce; a correct retry cannot reuse it.
	_, err = e.svc.SignatureLogin(ctx, e.credential(t, nonce), core.Metadata{})
	require.ErrorIs(t, err, core.ErrInvalidNonce)
}

func TestSignatureLoginRejectsMessageWithoutNonce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{})

	nonce, err := e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)

	msg := "Sign in to MedShare" // does not embed the nonce
	cred := core.Credential{
		Address:   e.address,
		Signature: suiwallet.SignPersonalMessage(e.priv, []byte(msg)),
		Message:   msg,
		Nonce:     nonce,
	}
	_, err = e.svc.SignatureLogin(ctx, cred, core.Metadata{})
	require.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestSignatureLoginRejectsSignatureFromOtherKey(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{})
	_, otherPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	nonce, err := e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)

	msg := "Sign in to MedShare: " + nonce
	cred := core.Credential{
		Address:   e.address,
		Signature: suiwallet.SignPersonalMessage(otherPriv, []byte(msg)),
		Message:   msg,
		Nonce:     nonce,
	}
	_, err = e.svc.SignatureLogin(ctx, cred, core.Metadata{})
	require.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestSignatureLoginExpiredNonce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{NonceTTL: -time.Second})

	nonce, err := e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)

	_, err = e.svc.SignatureLogin(ctx, e.credential(t, nonce), core.Metadata{})
	require.ErrorIs(t, err, core.ErrInvalidNonce)
}

func TestSignatureLoginUnknownNonce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{})

	_, err := e.svc.SignatureLogin(ctx, e.credential(t, "never-issued"), core.Metadata{})
	require.ErrorIs(t, err, core.ErrInvalidNonce)
}

func TestLoginNormalizesAddressCasing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{})

	// A client may present the hex address in any casing; the nonce it was
	// issued under and the resulting user record must still line up.
	upper := "0x" + strings.ToUpper(e.address[2:])
	nonce, err := e.svc.IssueNonce(ctx, upper)
	require.NoError(t, err)

	cred := e.credential(t, nonce)
	cred.Address = upper
	res, err := e.svc.SignatureLogin(ctx, cred, core.Metadata{})
	require.NoError(t, err)
	require.Equal(t, e.address, res.User.WalletAddress)

	// The lower-cased form resolves to the same identity, not a second user.
	n2, err := e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)
	r2, err := e.svc.SignatureLogin(ctx, e.credential(t, n2), core.Metadata{})
	require.NoError(t, err)
	require.Equal(t, res.User.ID, r2.User.ID)
}

func TestLoginIsIdempotentOnUserIdentity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{})

	n1, err := e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)
	r1, err := e.svc.SignatureLogin(ctx, e.credential(t, n1), core.Metadata{})
	require.NoError(t, err)

	n2, err := e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)
	r2, err := e.svc.SignatureLogin(ctx, e.credential(t, n2), core.Metadata{})
	require.NoError(t, err)

	require.Equal(t, r1.User.ID, r2.User.ID)
	require.NotEqual(t, r1.SessionToken, r2.SessionToken)
}

func TestValidateSessionMissingToken(t *testing.T) {
	e := newEnv(t, core.Options{})
	_, err := e.svc.ValidateSession(context.Background(), "")
	require.ErrorIs(t, err, core.ErrMissingCredential)
}

func TestValidateSessionUnknownToken(t *testing.T) {
	e := newEnv(t, core.Options{})
	_, err := e.svc.ValidateSession(context.Background(), "nope")
	require.ErrorIs(t, err, core.ErrInvalidSession)
}

func TestValidateSessionExpired(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{SessionTTL: -time.Second})

	nonce, err := e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)
	res, err := e.svc.SignatureLogin(ctx, e.credential(t, nonce), core.Metadata{})
	require.NoError(t, err)

	_, err = e.svc.ValidateSession(ctx, res.SessionToken)
	require.ErrorIs(t, err, core.ErrInvalidSession)
}

func TestLogoutInvalidatesServerSide(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{})

	nonce, err := e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)
	res, err := e.svc.SignatureLogin(ctx, e.credential(t, nonce), core.Metadata{})
	require.NoError(t, err)

	require.NoError(t, e.svc.Logout(ctx, res.SessionToken))

	// The token itself is now dead, regardless of what the client kept.
	_, err = e.svc.ValidateSession(ctx, res.SessionToken)
	require.ErrorIs(t, err, core.ErrInvalidSession)

	// Logging out an already dead session fails cleanly.
	err = e.svc.Logout(ctx, res.SessionToken)
	require.ErrorIs(t, err, core.ErrInvalidSession)
}

func TestUpdateProfilePartial(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{})

	user, err := e.svc.ResolveOrCreateUser(ctx, e.address)
	require.NoError(t, err)

	name := "Dr. Rivera"
	got, err := e.svc.UpdateProfile(ctx, user.ID, core.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, got.Name)
	require.Equal(t, name, *got.Name)
	require.Nil(t, got.Email)

	org := "Genomics Lab"
	got, err = e.svc.UpdateProfile(ctx, user.ID, core.ProfileUpdate{Organization: &org})
	require.NoError(t, err)
	require.NotNil(t, got.Name) // untouched by the second update
	require.Equal(t, org, *got.Organization)
}

func TestPurgeExpiredAuthRecords(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, core.Options{NonceTTL: -time.Minute, SessionTTL: -time.Minute})

	_, err := e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)
	_, err = e.svc.IssueNonce(ctx, e.address)
	require.NoError(t, err)

	nonces, _, err := e.svc.PurgeExpiredAuthRecords(ctx, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, nonces)
}
