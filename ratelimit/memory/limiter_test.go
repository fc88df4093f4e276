package memorylimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fOmar24/Medical-Research-Data-Sharing/ratelimit"
)

func TestAllowNamedEnforcesLimit(t *testing.T) {
	l := New(ratelimit.Limits{"b": {Max: 3, Window: time.Minute}})

	for i := 0; i < 3; i++ {
		ok, err := l.AllowNamed("b", "ip:1.2.3.4")
		require.NoError(t, err)
		require.True(t, ok, "request %d should pass", i)
	}
	ok, err := l.AllowNamed("b", "ip:1.2.3.4")
	require.NoError(t, err)
	require.False(t, ok)

	// Other keys have their own window.
	ok, err = l.AllowNamed("b", "ip:5.6.7.8")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAllowNamedWindowResets(t *testing.T) {
	l := New(ratelimit.Limits{"b": {Max: 1, Window: 5 * time.Millisecond}})

	ok, _ := l.AllowNamed("b", "k")
	require.True(t, ok)
	ok, _ = l.AllowNamed("b", "k")
	require.False(t, ok)

	time.Sleep(10 * time.Millisecond)
	ok, _ = l.AllowNamed("b", "k")
	require.True(t, ok)
}

func TestAllowNamedUnknownBucketAllows(t *testing.T) {
	l := New(ratelimit.Limits{})
	ok, err := l.AllowNamed("nope", "k")
	require.NoError(t, err)
	require.True(t, ok)
}
