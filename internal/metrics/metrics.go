// Package metrics exposes Prometheus collectors for the gateway.
package metrics

import (
	"context"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const namespace = "moonview"

// Metrics holds all application collectors
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	WSSessions       prometheus.Gauge
	WSMessages       *prometheus.CounterVec
	UpstreamCommands *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		WSSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_sessions",
			Help:      "Open WebSocket sessions.",
		}),
		WSMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by action and outcome.",
		}, []string{"action", "outcome"}),
		UpstreamCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_commands_total",
			Help:      "Commands sent to Redis servers by name and outcome.",
		}, []string{"command", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_command_duration_seconds",
			Help:      "Latency of commands and pipelines sent to Redis servers.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"command"}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.WSSessions,
		m.WSMessages,
		m.UpstreamCommands,
		m.UpstreamDuration,
	)

	return m
}

// RedisHook returns a go-redis hook recording command counts and latency
func (m *Metrics) RedisHook() redis.Hook {
	return redisHook{m: m}
}

type redisHook struct {
	m *Metrics
}

func (h redisHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		h.m.UpstreamCommands.WithLabelValues("dial", outcome(err)).Inc()
		return conn, err
	}
}

func (h redisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observe(cmd.Name(), start, err)
		return err
	}
}

func (h redisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.observe("pipeline", start, err)
		return err
	}
}

func (h redisHook) observe(name string, start time.Time, err error) {
	h.m.UpstreamCommands.WithLabelValues(name, outcome(err)).Inc()
	h.m.UpstreamDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// outcome labels an upstream result; a nil reply is not a failure
func outcome(err error) string {
	if err == nil || err == redis.Nil {
		return "ok"
	}
	return "error"
}
