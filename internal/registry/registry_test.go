package registry

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/eternalApril/moonview/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	r := New([]config.ServerConfig{
		{Name: "main", Host: mr.Host(), Port: port, Database: 3},
		{Name: "other", Host: mr.Host(), Port: port},
	}, config.RedisConfig{MaxRetries: 1}, zap.NewNop())
	t.Cleanup(func() { r.Close() }) //nolint:errcheck

	return r, mr
}

func TestRegistry_NamesPreserveOrder(t *testing.T) {
	r, _ := setupRegistry(t)
	assert.Equal(t, []string{"main", "other"}, r.Names())
}

func TestRegistry_Resolve(t *testing.T) {
	r, _ := setupRegistry(t)

	desc, err := r.Resolve("main")
	require.NoError(t, err)
	assert.Equal(t, 3, desc.Database)

	_, err = r.Resolve("missing")
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func TestRegistry_ClientPerDatabase(t *testing.T) {
	r, mr := setupRegistry(t)
	ctx := context.Background()

	c0, err := r.Client("main", 0)
	require.NoError(t, err)
	c1, err := r.Client("main", 1)
	require.NoError(t, err)
	again, err := r.Client("main", 0)
	require.NoError(t, err)

	assert.Same(t, c0, again)
	assert.NotSame(t, c0, c1)

	require.NoError(t, c1.Set(ctx, "k", "v", 0).Err())
	mr.Select(1)
	assert.True(t, mr.Exists("k"))
	mr.Select(0)
	assert.False(t, mr.Exists("k"))
}

func TestRegistry_DefaultDatabase(t *testing.T) {
	r, _ := setupRegistry(t)

	def, err := r.Client("main", DefaultDatabase)
	require.NoError(t, err)
	explicit, err := r.Client("main", 3)
	require.NoError(t, err)

	assert.Same(t, def, explicit)
	assert.Equal(t, 3, def.Options().DB)
}

func TestRegistry_ClientErrors(t *testing.T) {
	r, _ := setupRegistry(t)

	_, err := r.Client("missing", 0)
	assert.ErrorIs(t, err, ErrServerNotFound)

	_, err = r.Client("main", -5)
	assert.Error(t, err)
}

func TestRegistry_ConcurrentFirstUse(t *testing.T) {
	r, _ := setupRegistry(t)

	const workers = 64
	got := make([]*redis.Client, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			c, err := r.Client("other", 0)
			assert.NoError(t, err)
			got[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range got {
		assert.Same(t, got[0], c)
	}
}

func TestRegistry_Close(t *testing.T) {
	r, _ := setupRegistry(t)

	_, err := r.Client("main", 0)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Client("main", 0)
	assert.Error(t, err)
}
