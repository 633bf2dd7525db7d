package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSubmissionDedup_ReserveOnce(t *testing.T) {
	mr, client := newMiniredis(t)
	d := NewSubmissionDedup(client)
	ctx := context.Background()

	ok, err := d.Reserve(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Reserve(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second reservation inside the window must fail")

	assert.True(t, mr.Exists("dedup:submission:abc"))
	assert.Equal(t, time.Minute, mr.TTL("dedup:submission:abc"))
}

func TestSubmissionDedup_WindowExpires(t *testing.T) {
	mr, client := newMiniredis(t)
	d := NewSubmissionDedup(client)
	ctx := context.Background()

	_, err := d.Reserve(ctx, "abc", time.Minute)
	require.NoError(t, err)

	mr.FastForward(time.Minute + time.Second)

	ok, err := d.Reserve(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSubmissionDedup_Release(t *testing.T) {
	_, client := newMiniredis(t)
	d := NewSubmissionDedup(client)
	ctx := context.Background()

	_, err := d.Reserve(ctx, "abc", time.Minute)
	require.NoError(t, err)
	require.NoError(t, d.Release(ctx, "abc"))

	ok, err := d.Reserve(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSubmissionDedup_ServerDown(t *testing.T) {
	mr, client := newMiniredis(t)
	d := NewSubmissionDedup(client)
	mr.Close()

	_, err := d.Reserve(context.Background(), "abc", time.Minute)
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr, _ := newMiniredis(t)
	addr := mr.Addr()

	client, err := Connect(context.Background(), Config{Addr: addr})
	require.NoError(t, err)
	_ = client.Close()

	mr.Close()
	_, err = Connect(context.Background(), Config{Addr: addr, Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
