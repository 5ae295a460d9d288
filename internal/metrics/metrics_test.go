package metrics

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisHook(t *testing.T) {
	mr := miniredis.RunT(t)
	m := New(prometheus.NewRegistry())

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close() //nolint:errcheck
	rdb.AddHook(m.RedisHook())

	ctx := context.Background()
	require.NoError(t, rdb.Set(ctx, "k", "v", 0).Err())
	assert.ErrorIs(t, rdb.Get(ctx, "missing").Err(), redis.Nil)
	assert.Error(t, rdb.LPush(ctx, "k", "x").Err())

	_, err := rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Get(ctx, "k")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamCommands.WithLabelValues("set", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamCommands.WithLabelValues("get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamCommands.WithLabelValues("lpush", "error")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.UpstreamCommands.WithLabelValues("pipeline", "ok")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.UpstreamCommands.WithLabelValues("dial", "ok")), 1.0)
}

func TestNew_RegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.HTTPRequests.WithLabelValues("GET", "/servers", "200").Inc()
	m.WSSessions.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "moonview_http_requests_total")
	assert.Contains(t, names, "moonview_ws_sessions")
}
