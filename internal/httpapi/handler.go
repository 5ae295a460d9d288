// Package httpapi serves the gateway operations over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/eternalApril/moonview/internal/gateway"
	"github.com/eternalApril/moonview/internal/metrics"
	"go.uber.org/zap"
)

// maxDeleteBody bounds the JSON key list accepted by DELETE /server/entries
const maxDeleteBody = 8 << 20

type errorBody struct {
	Error string `json:"error"`
}

// Handler maps HTTP routes to gateway operations
type Handler struct {
	svc     *gateway.Service
	metrics *metrics.Metrics
	logger  *zap.Logger
	mux     *http.ServeMux
}

// NewHandler creates a handler with all API routes registered
func NewHandler(svc *gateway.Service, m *metrics.Metrics, logger *zap.Logger) *Handler {
	h := &Handler{
		svc:     svc,
		metrics: m,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.route("GET /health", "/health", h.handleHealth)
	h.route("GET /servers", "/servers", h.handleServers)
	h.route("GET /server/info", "/server/info", h.handleServerInfo)
	h.route("GET /server/databases", "/server/databases", h.handleDatabases)
	h.route("GET /server/entries", "/server/entries", h.handleEntries)
	h.route("DELETE /server/entries", "/server/entries", h.handleDeleteEntries)
	h.route("GET /server/entry", "/server/entry", h.handleEntry)
}

func (h *Handler) route(pattern, name string, fn http.HandlerFunc) {
	h.mux.Handle(pattern, Instrument(h.metrics, name)(fn))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleServers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Servers())
}

func (h *Handler) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.ServerInfo(r.Context(), r.URL.Query().Get("server"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) handleDatabases(w http.ResponseWriter, r *http.Request) {
	dbs, err := h.svc.Databases(r.Context(), r.URL.Query().Get("server"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dbs)
}

func (h *Handler) handleEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	db, err := parseDatabase(q.Get("database"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	pattern := q.Get("pattern")
	if pattern == "" {
		pattern = "*"
	}

	entries, err := h.svc.Entries(r.Context(), q.Get("server"), db, pattern, q.Get("sort"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleEntry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	db, err := parseDatabase(q.Get("database"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if !q.Has("key") {
		h.writeError(w, r, badRequest("key is required"))
		return
	}

	data, err := h.svc.Entry(r.Context(), q.Get("server"), db, q.Get("key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) handleDeleteEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	db, err := parseDatabase(q.Get("database"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var keys []string
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDeleteBody)).Decode(&keys); err != nil {
		h.writeError(w, r, badRequest("body must be a JSON array of keys"))
		return
	}

	if _, err := h.svc.DeleteEntries(r.Context(), q.Get("server"), db, keys); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, true)
}

// parseDatabase reads the database query parameter; empty selects the server default
func parseDatabase(raw string) (int, error) {
	if raw == "" {
		return gateway.DefaultDatabase, nil
	}
	db, err := strconv.Atoi(raw)
	if err != nil || db < 0 {
		return 0, badRequest("database must be a non-negative integer")
	}
	return db, nil
}

func badRequest(reason string) error {
	return fmt.Errorf("%w: %s", gateway.ErrMalformedRequest, reason)
}

// statusOf maps gateway errors to HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, gateway.ErrServerNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrMalformedRequest):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrUnsupportedType):
		return http.StatusUnprocessableEntity
	case gateway.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody{Error: gateway.Message(err)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}
