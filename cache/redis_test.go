package cache

import (
	"context"
	"testing"
	"time"

	"shop-svc/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestProductKey(t *testing.T) {
	assert.Equal(t, "product:42", productKey(42))
}

func TestNilProductCache_IsNoop(t *testing.T) {
	var c *ProductCache
	ctx := context.Background()

	p, err := c.Get(ctx, 1)
	assert.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, c.Set(ctx, &models.Product{ID: 1}))
	assert.NoError(t, c.Flush(ctx))
	c.Invalidate(ctx, 1, 2)
}

func TestProductCache_UnreachableRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()
	c := NewProductCache(rdb, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := c.Get(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, c.Set(ctx, &models.Product{ID: 1}))
	// Invalidation only logs.
	c.Invalidate(ctx, 1)
}
