package redis

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skwf/portal/storage"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStorage(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRepository(client)

	env := storage.PlainRecord([]byte(`{"token":"t1"}`))

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get("portal", "SESSION", "user")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, s.Put("portal", "SESSION", "user", env))
		assert.True(t, mr.Exists("portal:portal:SESSION:user"))

		got, err := s.Get("portal", "SESSION", "user")
		require.NoError(t, err)
		assert.Equal(t, env.Scheme, got.Scheme)
		assert.Equal(t, env.Data, got.Data)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, s.Put("portal", "SESSION", "second", env))
		require.NoError(t, s.Put("portal", "PREFS", "x", env))

		ids, err := s.List("portal", "SESSION")
		require.NoError(t, err)
		sort.Strings(ids)
		assert.Equal(t, []string{"second", "user"}, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete("portal", "SESSION", "user"))
		_, err := s.Get("portal", "SESSION", "user")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, s.Delete("portal", "SESSION", "user"), storage.ErrNotFound)
	})

	t.Run("CorruptValue", func(t *testing.T) {
		require.NoError(t, mr.Set("portal:portal:SESSION:bad", "{not json"))
		_, err := s.Get("portal", "SESSION", "bad")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestRedisPrefix(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRepository(client, WithPrefix("tenant-a"))

	require.NoError(t, s.Put("portal", "SESSION", "user", storage.PlainRecord([]byte("x"))))
	assert.True(t, mr.Exists("tenant-a:portal:SESSION:user"))
}

func TestNewRepositoryFromAddr(t *testing.T) {
	mr, _ := newTestRedis(t)

	s, err := NewRepositoryFromAddr(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Put("portal", "SESSION", "user", storage.PlainRecord([]byte("x"))))

	mr.Close()
	_, err = NewRepositoryFromAddr(context.Background(), mr.Addr(), "", 0)
	assert.Error(t, err)
}
