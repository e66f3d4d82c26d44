package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })

	require.NoError(t, m.Set(ctx, "k", []string{"a"}, time.Minute))

	var got []string
	require.True(t, m.Get(ctx, "k", &got))
	assert.Equal(t, []string{"a"}, got)

	now = now.Add(time.Minute)
	assert.False(t, m.Get(ctx, "k", &got), "entry expires at its deadline")
}

func TestRememberCachesSuccessOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	calls := 0

	_, err := Remember(ctx, m, "k", time.Minute, func() (string, error) {
		calls++
		return "", errors.New("upstream down")
	})
	require.Error(t, err)

	for i := 0; i < 3; i++ {
		v, err := Remember(ctx, m, "k", time.Minute, func() (string, error) {
			calls++
			return "page", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "page", v)
	}
	assert.Equal(t, 2, calls)
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "k", 1, 0))
	require.NoError(t, m.Forget(ctx, "k"))

	var n int
	assert.False(t, m.Get(ctx, "k", &n))
}
