package repo_test

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	appErr "github.com/barbartender/bartender/internal/pkg/errors"
	"github.com/barbartender/bartender/internal/pkg/timeutil"
	"github.com/barbartender/bartender/internal/repo"
)

func openTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestVerificationRedisRepo(t *testing.T) {
	ctx := context.Background()
	client := openTestRedis(t)
	prefix := "bartender-test:" + t.Name() + ":"
	codes := repo.NewVerificationRedisRepo(client, prefix)
	now := timeutil.NowUnix()

	first := newCode("c1", "a@x.com", now)
	second := newCode("c2", "a@x.com", now)
	require.NoError(t, codes.Replace(ctx, first))
	require.NoError(t, codes.Replace(ctx, second))

	got, err := codes.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "c2", got.ID)

	removed, err := codes.Remove(ctx, first)
	require.NoError(t, err)
	require.False(t, removed)

	removed, err = codes.Remove(ctx, second)
	require.NoError(t, err)
	require.True(t, removed)

	_, err = codes.GetByEmail(ctx, "a@x.com")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, codes.Replace(ctx, newCode("c3", "b@x.com", now-3600)))
	n, err := codes.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
