package translate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCacheBounded(t *testing.T) {
	c := NewLRUCache(2, time.Hour)
	ctx := context.Background()

	c.Set(ctx, Key{Text: "a", Target: "es", Source: "en"}, "A")
	c.Set(ctx, Key{Text: "b", Target: "es", Source: "en"}, "B")
	c.Set(ctx, Key{Text: "c", Target: "es", Source: "en"}, "C")

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, Key{Text: "a", Target: "es", Source: "en"})
	assert.False(t, ok)
	v, ok := c.Get(ctx, Key{Text: "c", Target: "es", Source: "en"})
	assert.True(t, ok)
	assert.Equal(t, "C", v)
}

func TestKeyDistinguishesSource(t *testing.T) {
	a := Key{Text: "Hello", Target: "es", Source: "en"}
	b := Key{Text: "Hello", Target: "es", Source: AutoSource}
	assert.NotEqual(t, a.String(), b.String())
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(RedisConfig{Address: mr.Addr(), Prefix: "tr", TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()
	key := Key{Text: "Hello", Target: "es", Source: "en"}

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, "Hola")
	v, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "Hola", v)

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
}

func TestRedisCacheErrorsAreMisses(t *testing.T) {
	c, mr := newRedisCache(t)
	mr.Close()

	_, ok := c.Get(context.Background(), Key{Text: "x", Target: "es"})
	assert.False(t, ok)
	c.Set(context.Background(), Key{Text: "x", Target: "es"}, "y")
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(RedisConfig{Address: addr})
	assert.Error(t, err)
}

func TestTieredPopulatesLocal(t *testing.T) {
	shared, _ := newRedisCache(t)
	local := NewLRUCache(10, 0)
	tc := Tiered{Local: local, Shared: shared}
	ctx := context.Background()
	key := Key{Text: "Hello", Target: "de", Source: "en"}

	shared.Set(ctx, key, "Hallo")
	v, ok := tc.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "Hallo", v)
	assert.Equal(t, 1, local.Len())
}

func TestDispatcherUsesRedisCache(t *testing.T) {
	shared, _ := newRedisCache(t)
	p := &countingProvider{fn: tagged}
	d1 := NewDispatcher(p, Tiered{Local: NewLRUCache(10, 0), Shared: shared}, testLanguages(t), Options{})
	d2 := NewDispatcher(p, Tiered{Local: NewLRUCache(10, 0), Shared: shared}, testLanguages(t), Options{})

	assert.Equal(t, "[es] Hello", d1.Translate(context.Background(), "Hello", "es", "en"))
	assert.Equal(t, "[es] Hello", d2.Translate(context.Background(), "Hello", "es", "en"))
	assert.EqualValues(t, 1, p.calls.Load())
}
