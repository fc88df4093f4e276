package datasets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGrantActive(t *testing.T) {
	now := time.Now()
	g := &AccessGrant{ExpiresAt: now.Add(time.Hour)}
	require.True(t, g.Active(now))

	g.Revoked = true
	require.False(t, g.Active(now))

	g = &AccessGrant{ExpiresAt: now.Add(-time.Second)}
	require.False(t, g.Active(now))
}

func TestGrantInputDefaults(t *testing.T) {
	now := time.Now()

	level, expiresAt := GrantInput{}.normalized(now)
	require.Equal(t, AccessRead, level)
	require.Equal(t, now.Add(defaultGrantTTL), expiresAt)

	level, expiresAt = GrantInput{AccessLevel: AccessFull, DurationDays: 7}.normalized(now)
	require.Equal(t, AccessFull, level)
	require.Equal(t, now.Add(7*24*time.Hour), expiresAt)
}

func TestGrantRenewKeepsOriginalProvenance(t *testing.T) {
	now := time.Now()
	issued := now.Add(-48 * time.Hour)
	tx1 := "0xabc"
	g := &AccessGrant{
		ID:          7,
		DatasetID:   3,
		GranteeID:   11,
		AccessLevel: AccessRead,
		GrantedBy:   1,
		GrantedAt:   issued,
		ExpiresAt:   now.Add(time.Hour),
		TxHash:      &tx1,
	}

	tx2 := "0xdef"
	level, expiresAt := GrantInput{AccessLevel: AccessFull, DurationDays: 90}.normalized(now)
	g.renew(level, expiresAt, &tx2)

	require.Equal(t, AccessFull, g.AccessLevel)
	require.Equal(t, now.Add(90*24*time.Hour), g.ExpiresAt)
	require.Equal(t, &tx2, g.TxHash)
	// Renewal extends the existing grant; who issued it and when stay put.
	require.EqualValues(t, 7, g.ID)
	require.EqualValues(t, 1, g.GrantedBy)
	require.Equal(t, issued, g.GrantedAt)
	require.True(t, g.Active(now))
}

func TestGrantRevoke(t *testing.T) {
	now := time.Now()
	tx := "0x123"
	g := &AccessGrant{ExpiresAt: now.Add(time.Hour)}

	g.revoke(42, &tx, now)
	require.True(t, g.Revoked)
	require.Equal(t, &now, g.RevokedAt)
	require.EqualValues(t, 42, *g.RevokedBy)
	require.Equal(t, &tx, g.RevocationTxHash)
	require.False(t, g.Active(now))
}

func TestGrantRevokeIdempotent(t *testing.T) {
	now := time.Now()
	g := &AccessGrant{ExpiresAt: now.Add(time.Hour)}
	g.revoke(42, nil, now)

	// A second revocation keeps the original revocation record.
	later := now.Add(time.Minute)
	g.revoke(99, nil, later)
	require.Equal(t, &now, g.RevokedAt)
	require.EqualValues(t, 42, *g.RevokedBy)
}

func TestRequestApprove(t *testing.T) {
	now := time.Now()
	req := &AccessRequest{Status: StatusPending}
	req.approve(5, now)

	require.Equal(t, StatusApproved, req.Status)
	require.Equal(t, &now, req.ProcessedAt)
	require.EqualValues(t, 5, *req.ProcessedBy)
}

func TestClampPage(t *testing.T) {
	limit, offset := clampPage(0, -5)
	require.Equal(t, 20, limit)
	require.Equal(t, 0, offset)

	limit, offset = clampPage(500, 40)
	require.Equal(t, 20, limit)
	require.Equal(t, 40, offset)

	limit, _ = clampPage(50, 0)
	require.Equal(t, 50, limit)
}
