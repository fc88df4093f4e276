package memorystore

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fOmar24/Medical-Research-Data-Sharing/core"
)

const addr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestNonceConsumeSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewNonceStore()
	require.NoError(t, s.Save(ctx, addr, "n1", time.Now().Add(time.Minute)))

	const racers = 64
	var wins atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := s.Consume(ctx, addr, "n1")
			require.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, wins.Load())
}

func TestNonceConsumeExpired(t *testing.T) {
	ctx := context.Background()
	s := NewNonceStore()
	require.NoError(t, s.Save(ctx, addr, "n1", time.Now().Add(-time.Second)))

	ok, err := s.Consume(ctx, addr, "n1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNonceConsumeUnknown(t *testing.T) {
	s := NewNonceStore()
	ok, err := s.Consume(context.Background(), addr, "never-saved")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNonceMultipleOutstanding(t *testing.T) {
	ctx := context.Background()
	s := NewNonceStore()
	exp := time.Now().Add(time.Minute)
	require.NoError(t, s.Save(ctx, addr, "n1", exp))
	require.NoError(t, s.Save(ctx, addr, "n2", exp))

	ok, err := s.Consume(ctx, addr, "n2")
	require.NoError(t, err)
	require.True(t, ok)

	// Consuming one nonce leaves the other usable.
	ok, err = s.Consume(ctx, addr, "n1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestResolveOrCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()

	const racers = 64
	ids := make([]int64, racers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			u, err := s.ResolveOrCreate(ctx, addr)
			require.NoError(t, err)
			ids[i] = u.ID
		}(i)
	}
	close(start)
	wg.Wait()

	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
}

func TestStoresNormalizeAddressCasing(t *testing.T) {
	ctx := context.Background()
	upper := "0x" + strings.ToUpper(addr[2:])

	nonces := NewNonceStore()
	require.NoError(t, nonces.Save(ctx, upper, "n1", time.Now().Add(time.Minute)))
	ok, err := nonces.Consume(ctx, addr, "n1")
	require.NoError(t, err)
	require.True(t, ok)

	users := NewUserStore()
	u1, err := users.ResolveOrCreate(ctx, upper)
	require.NoError(t, err)
	require.Equal(t, addr, u1.WalletAddress)
	u2, err := users.ResolveOrCreate(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, u1.ID, u2.ID)
}

func TestSessionValidateJoinsIdentity(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	sessions := NewSessionStore(users)

	u, err := users.ResolveOrCreate(ctx, addr)
	require.NoError(t, err)

	sess := &core.Session{UserID: u.ID, Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, sessions.Save(ctx, sess))

	got, err := sessions.Validate(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, addr, got.WalletAddress)
}

func TestSessionValidateDeadTokens(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	sessions := NewSessionStore(users)
	u, err := users.ResolveOrCreate(ctx, addr)
	require.NoError(t, err)

	expired := &core.Session{UserID: u.ID, Token: "expired", ExpiresAt: time.Now().Add(-time.Second)}
	require.NoError(t, sessions.Save(ctx, expired))
	got, err := sessions.Validate(ctx, "expired")
	require.NoError(t, err)
	require.Nil(t, got)

	live := &core.Session{UserID: u.ID, Token: "live", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, sessions.Save(ctx, live))
	require.NoError(t, sessions.Invalidate(ctx, "live"))
	got, err = sessions.Validate(ctx, "live")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = sessions.Validate(ctx, "unknown")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestKVExpiry(t *testing.T) {
	ctx := context.Background()
	kv := NewKV()

	require.NoError(t, kv.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)

	require.NoError(t, kv.Set(ctx, "gone", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, err = kv.Get(ctx, "gone")
	require.NoError(t, err)
	require.False(t, ok)
}
