package wsapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/eternalApril/moonview/internal/metrics"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// maxInFlight bounds the requests of one session processed concurrently
const maxInFlight = 8

// maxMessageSize bounds a single inbound frame
const maxMessageSize = 1 << 20

// Handler upgrades HTTP requests and runs one session per connection
type Handler struct {
	router   *Router
	metrics  *metrics.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket endpoint. allowedOrigins uses the same
// rules as the CORS middleware: "*" accepts any origin
func NewHandler(router *Router, m *metrics.Metrics, logger *zap.Logger, allowedOrigins []string) *Handler {
	return &Handler{
		router:  router,
		metrics: m,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		// same host is always fine
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	h.serve(NewPeer(conn))
}

// serve reads messages until the client goes away. Requests are handled
// concurrently; replies carry the request id so the client can match them
func (h *Handler) serve(peer *Peer) {
	h.metrics.WSSessions.Inc()
	if h.logger.Core().Enabled(zap.DebugLevel) {
		h.logger.Debug("client connected", zap.String("addr", peer.RemoteAddr()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	slots := make(chan struct{}, maxInFlight)

	defer func() {
		cancel()
		wg.Wait()
		peer.Close() //nolint:errcheck
		h.metrics.WSSessions.Dec()
		if h.logger.Core().Enabled(zap.DebugLevel) {
			h.logger.Debug("client disconnected", zap.String("addr", peer.RemoteAddr()))
		}
	}()

	for {
		_, msg, err := peer.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.logger.Warn("read message failed", zap.Error(err))
			}
			return
		}

		// keepalive sent by the web client
		if string(msg) == "ping" {
			if err := peer.SendText("pong"); err != nil {
				return
			}
			continue
		}

		slots <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-slots
				wg.Done()
			}()
			h.handle(ctx, peer, msg)
		}()
	}
}

func (h *Handler) handle(ctx context.Context, peer *Peer, msg []byte) {
	reply, action := h.router.Handle(ctx, msg)

	if action == "" {
		action = "invalid"
	}
	outcome := "ok"
	if reply.Error != "" {
		outcome = "error"
	}
	h.metrics.WSMessages.WithLabelValues(action, outcome).Inc()

	if err := peer.Send(reply); err != nil {
		h.logger.Warn("write reply failed", zap.Error(err))
	}
}
