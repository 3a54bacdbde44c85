package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_ExclusiveUntilUnlocked(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "tendril:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "checkout", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("tendril:lock:checkout"))

	waitCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "checkout", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("tendril:lock:checkout"))

	unlock, err = locker.Lock(ctx, "checkout", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestLocker_UnlockIgnoresForeignToken(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "tendril:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "cart", time.Minute)
	require.NoError(t, err)

	require.NoError(t, mr.Set("tendril:lock:cart", "someone-else"))
	require.NoError(t, unlock(ctx))

	got, err := mr.Get("tendril:lock:cart")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
