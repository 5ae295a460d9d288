package httpapi

import (
	"net/http"

	"github.com/eternalApril/moonview/internal/gateway"
	"github.com/eternalApril/moonview/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig holds the collaborators of the HTTP router
type RouterConfig struct {
	Service *gateway.Service
	Metrics *metrics.Metrics

	// Gatherer backs the /metrics endpoint
	Gatherer prometheus.Gatherer

	// WebSocket serves /ws when set
	WebSocket http.Handler

	Logger *zap.Logger

	// CORSOrigins lists allowed origins, "*" allows any
	CORSOrigins []string

	// RateLimit is the per client IP limit in requests/second (0 = off)
	RateLimit int
}

// NewRouter builds the top-level handler with all routes and middleware.
// Order: Recover -> RequestID -> AccessLog -> CORS -> RateLimit -> routes
func NewRouter(cfg *RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/", NewHandler(cfg.Service, cfg.Metrics, cfg.Logger))

	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	if cfg.WebSocket != nil {
		mux.Handle("GET /ws", Instrument(cfg.Metrics, "/ws")(cfg.WebSocket))
	}

	middlewares := []Middleware{
		Recover(cfg.Logger),
		RequestID(),
		AccessLog(cfg.Logger),
		CORS(cfg.CORSOrigins),
	}
	if cfg.RateLimit > 0 {
		middlewares = append(middlewares, RateLimit(cfg.RateLimit))
	}

	return Chain(mux, middlewares...)
}
