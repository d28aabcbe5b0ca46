package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("set get and miss", func(t *testing.T) {
		s, mr := newRedisStore(t)

		_, err := s.Get(ctx, "yok")
		assert.ErrorIs(t, err, ErrMiss)

		require.NoError(t, s.Set(ctx, "price:product:1", "120.50", time.Minute))
		v, err := s.Get(ctx, "price:product:1")
		require.NoError(t, err)
		assert.Equal(t, "120.50", v)
		assert.True(t, mr.Exists("motoparca:price:product:1"))

		mr.FastForward(2 * time.Minute)
		_, err = s.Get(ctx, "price:product:1")
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("delete", func(t *testing.T) {
		s, _ := newRedisStore(t)
		require.NoError(t, s.Set(ctx, "a", "1", 0))
		require.NoError(t, s.Set(ctx, "b", "2", 0))

		require.NoError(t, s.Delete(ctx))
		require.NoError(t, s.Delete(ctx, "a", "b"))
		_, err := s.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("delete prefix spans several scan batches", func(t *testing.T) {
		s, mr := newRedisStore(t)
		for i := 1; i <= 1203; i++ {
			require.NoError(t, s.Set(ctx, fmt.Sprintf("price:product:%d", i), "1", 0))
		}
		require.NoError(t, s.Set(ctx, "shipping:settings", "x", 0))
		require.NoError(t, mr.Set("price:product:9", "other app"))

		require.NoError(t, s.DeletePrefix(ctx, "price:"))

		assert.Equal(t, []string{"motoparca:shipping:settings", "price:product:9"}, mr.Keys())
	})

	t.Run("errors are wrapped", func(t *testing.T) {
		s, mr := newRedisStore(t)
		mr.SetError("ERR sunucu hatası")

		_, err := s.Get(ctx, "a")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMiss)
		assert.Error(t, s.Ping(ctx))
	})
}
