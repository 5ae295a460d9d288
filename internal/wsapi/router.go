// Package wsapi dispatches JSON messages received over WebSocket to gateway
// operations and correlates replies by the caller's id.
package wsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eternalApril/moonview/internal/gateway"
)

const (
	ActionServers   = "servers"
	ActionInfo      = "server:info"
	ActionDatabases = "server:databases"
	ActionEntries   = "server:entries"
	ActionEntry     = "server:entry"
	ActionDelete    = "server:delete"
)

var (
	errInvalidFormat = errors.New("Invalid message format") //nolint:staticcheck
	errInvalidAction = errors.New("Invalid action")         //nolint:staticcheck
)

// Request is an inbound message
type Request struct {
	ID      json.RawMessage `json:"id"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Reply is an outbound message. ID echoes the request id verbatim
type Reply struct {
	ID    json.RawMessage `json:"id,omitempty"`
	Data  any             `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

type action interface {
	execute(ctx context.Context, payload json.RawMessage) (any, error)
}

type actionFunc func(ctx context.Context, payload json.RawMessage) (any, error)

func (f actionFunc) execute(ctx context.Context, payload json.RawMessage) (any, error) {
	return f(ctx, payload)
}

// Router maps action names to gateway operations
type Router struct {
	actions map[string]action
	svc     *gateway.Service
}

// NewRouter registers every supported action
func NewRouter(svc *gateway.Service) *Router {
	r := &Router{
		actions: make(map[string]action),
		svc:     svc,
	}
	r.registerActions()
	return r
}

// register adds a new action to the router
func (r *Router) register(name string, a action) {
	r.actions[name] = a
}

func (r *Router) registerActions() {
	r.register(ActionServers, actionFunc(func(context.Context, json.RawMessage) (any, error) {
		return r.svc.Servers(), nil
	}))

	r.register(ActionInfo, actionFunc(func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p serverPayload
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		return r.svc.ServerInfo(ctx, p.Server)
	}))

	r.register(ActionDatabases, actionFunc(func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p serverPayload
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		return r.svc.Databases(ctx, p.Server)
	}))

	r.register(ActionEntries, actionFunc(func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p entriesPayload
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		return r.svc.Entries(ctx, p.Server, p.database(), p.Pattern, p.Sort)
	}))

	r.register(ActionEntry, actionFunc(func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p entryPayload
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		return r.svc.Entry(ctx, p.Server, p.database(), p.Key)
	}))

	r.register(ActionDelete, actionFunc(func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p deletePayload
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		if _, err := r.svc.DeleteEntries(ctx, p.Server, p.database(), p.Keys); err != nil {
			return nil, err
		}
		return true, nil
	}))
}

// Handle processes one raw message and returns the reply to send along with
// the executed action name, empty when the message named no known action
func (r *Router) Handle(ctx context.Context, msg []byte) (Reply, string) {
	req, err := parseRequest(msg)
	if err != nil {
		return Reply{Error: err.Error()}, ""
	}

	a, ok := r.actions[req.Action]
	if !ok {
		return Reply{ID: req.ID, Error: errInvalidAction.Error()}, ""
	}

	data, err := a.execute(ctx, req.Payload)
	if err != nil {
		return Reply{ID: req.ID, Error: gateway.Message(err)}, req.Action
	}

	return Reply{ID: req.ID, Data: data}, req.Action
}

// parseRequest accepts only JSON objects
func parseRequest(msg []byte) (Request, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || msg[0] != '{' {
		return Request{}, errInvalidFormat
	}

	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return Request{}, errInvalidFormat
	}
	return req, nil
}

type serverPayload struct {
	Server   string `json:"server"`
	Database *int   `json:"database"`
}

// database returns the requested index or the server default
func (p serverPayload) database() int {
	if p.Database == nil {
		return gateway.DefaultDatabase
	}
	return *p.Database
}

type entriesPayload struct {
	serverPayload
	Pattern string `json:"pattern"`
	Sort    string `json:"sort"`
}

type entryPayload struct {
	serverPayload
	Key string `json:"key"`
}

type deletePayload struct {
	serverPayload
	Keys []string `json:"keys"`
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: invalid payload: %v", gateway.ErrMalformedRequest, err)
	}
	return nil
}
