// Package registry resolves configured server names to Redis clients.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eternalApril/moonview/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultDatabase selects the database index configured for the server
const DefaultDatabase = -1

// ErrServerNotFound is returned when no descriptor matches the requested name
var ErrServerNotFound = errors.New("Server not found") //nolint:staticcheck

type clientKey struct {
	server   string
	database int
}

// Registry owns one lazily created client per (server, database) pair.
// It is safe for concurrent use
type Registry struct {
	servers []config.ServerConfig
	index   map[string]int
	opts    config.RedisConfig
	hooks   []redis.Hook
	logger  *zap.Logger

	mu      sync.Mutex
	clients map[clientKey]*redis.Client
	closed  bool
}

// New builds a registry over the given descriptors. Descriptor order is preserved by Names.
// hooks are installed on every client the registry creates
func New(servers []config.ServerConfig, opts config.RedisConfig, logger *zap.Logger, hooks ...redis.Hook) *Registry {
	r := &Registry{
		servers: append([]config.ServerConfig(nil), servers...),
		index:   make(map[string]int, len(servers)),
		opts:    opts,
		hooks:   hooks,
		logger:  logger,
		clients: make(map[clientKey]*redis.Client),
	}
	for i, s := range r.servers {
		r.index[s.Name] = i
	}
	return r
}

// Names returns the configured server names in configuration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.servers))
	for i, s := range r.servers {
		names[i] = s.Name
	}
	return names
}

// Resolve returns the descriptor registered under name
func (r *Registry) Resolve(name string) (config.ServerConfig, error) {
	i, ok := r.index[name]
	if !ok {
		return config.ServerConfig{}, ErrServerNotFound
	}
	return r.servers[i], nil
}

// Client returns the cached client bound to the server and database,
// creating it on first use. DefaultDatabase picks the descriptor's database
func (r *Registry) Client(name string, database int) (*redis.Client, error) {
	desc, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	if database == DefaultDatabase {
		database = desc.Database
	}
	if database < 0 {
		return nil, fmt.Errorf("invalid database index %d", database)
	}

	key := clientKey{server: name, database: database}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.New("registry is closed")
	}

	if c, ok := r.clients[key]; ok {
		return c, nil
	}

	c := redis.NewClient(&redis.Options{
		Addr:         desc.Addr(),
		Password:     desc.Password,
		DB:           database,
		DialTimeout:  r.opts.DialTimeout,
		ReadTimeout:  r.opts.ReadTimeout,
		WriteTimeout: r.opts.WriteTimeout,
		MaxRetries:   r.opts.MaxRetries,
	})
	for _, h := range r.hooks {
		c.AddHook(h)
	}
	r.clients[key] = c

	if r.logger.Core().Enabled(zap.DebugLevel) {
		r.logger.Debug("client created",
			zap.String("server", name),
			zap.String("addr", desc.Addr()),
			zap.Int("database", database),
		)
	}

	return c, nil
}

// Close closes every cached client. Later calls to Client fail
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for key, c := range r.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s/%d: %w", key.server, key.database, err))
		}
	}
	clear(r.clients)

	return errors.Join(errs...)
}
