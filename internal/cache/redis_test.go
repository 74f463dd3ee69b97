package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/config"
)

func newTestCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := InitServer(context.Background(), config.RedisConnection{
		AddressRedis: mr.Addr(),
		DialTimeout:  time.Second,
		TimeoutRedis: time.Second,
	})
	require.NoError(t, err)
	return c, mr
}

func TestRedis_SetGet(t *testing.T) {
	c, _ := newTestCache(t)

	type payload struct {
		Tier      string `json:"tier"`
		Remaining int    `json:"remaining"`
	}

	require.NoError(t, c.Set("subscription:user:u-1", payload{Tier: "premium", Remaining: 42}, time.Minute))

	var got payload
	found, err := c.Get("subscription:user:u-1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "premium", got.Tier)
	assert.Equal(t, 42, got.Remaining)
}

func TestRedis_GetMiss(t *testing.T) {
	c, _ := newTestCache(t)

	var got map[string]any
	found, err := c.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_Invalidate(t *testing.T) {
	c, _ := newTestCache(t)

	require.NoError(t, c.Set("subscription:user:u-1", "x", time.Minute))
	require.NoError(t, c.Invalidate("subscription:user:u-1"))

	var got string
	found, err := c.Get("subscription:user:u-1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_InvalidatePrefix(t *testing.T) {
	c, _ := newTestCache(t)

	require.NoError(t, c.Set("subscription:user:u-1", "a", time.Minute))
	require.NoError(t, c.Set("subscription:user:u-2", "b", time.Minute))
	require.NoError(t, c.Set("stats:player:p-1", "c", time.Minute))

	require.NoError(t, c.InvalidatePrefix("subscription:user:"))

	var got string
	found, err := c.Get("subscription:user:u-1", &got)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = c.Get("stats:player:p-1", &got)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRedis_Expiration(t *testing.T) {
	c, mr := newTestCache(t)

	require.NoError(t, c.Set("subscription:user:u-1", "x", time.Minute))
	mr.FastForward(2 * time.Minute)

	var got string
	found, err := c.Get("subscription:user:u-1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}
