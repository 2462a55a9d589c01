package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveroute/internal/platform/config"
)

func TestNewWithoutURL(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestOptions(t *testing.T) {
	t.Run("overlays configured values", func(t *testing.T) {
		opts, err := options(config.RedisConfig{
			URL:          "redis://cache:6380/2",
			PoolSize:     25,
			MinIdleConns: 4,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 25, opts.PoolSize)
		assert.Equal(t, 4, opts.MinIdleConns)
		assert.Equal(t, 2*time.Second, opts.DialTimeout)
	})

	t.Run("zero values keep defaults", func(t *testing.T) {
		opts, err := options(config.RedisConfig{URL: "redis://cache:6379/0"})
		require.NoError(t, err)
		assert.Zero(t, opts.PoolSize)
		assert.Zero(t, opts.DialTimeout)
	})

	t.Run("malformed url", func(t *testing.T) {
		_, err := options(config.RedisConfig{URL: "http://cache"})
		assert.Error(t, err)
	})
}
