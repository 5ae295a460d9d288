// Package gateway implements the operations exposed by the HTTP and
// WebSocket transports on top of the connection registry.
package gateway

import (
	"context"
	"time"

	"github.com/eternalApril/moonview/internal/keyspace"
	"github.com/eternalApril/moonview/internal/registry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultDatabase selects the database configured for the server
const DefaultDatabase = registry.DefaultDatabase

// Connector resolves server names to clients
type Connector interface {
	Names() []string
	Client(server string, database int) (*redis.Client, error)
}

// Service orchestrates scans, value fetches and server introspection
type Service struct {
	conn    Connector
	scanner *keyspace.Scanner
	fetcher *keyspace.Fetcher
	logger  *zap.Logger
}

// NewService creates a gateway service
func NewService(conn Connector, scanner *keyspace.Scanner, fetcher *keyspace.Fetcher, logger *zap.Logger) *Service {
	return &Service{
		conn:    conn,
		scanner: scanner,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Servers returns the configured server names
func (s *Service) Servers() []string {
	return s.conn.Names()
}

// ServerInfo collects INFO sections and the last save time of server
func (s *Service) ServerInfo(ctx context.Context, server string) (ServerInfo, error) {
	c, err := s.client(server, DefaultDatabase)
	if err != nil {
		return ServerInfo{}, err
	}

	info, err := collectInfo(ctx, c)
	if err != nil {
		return ServerInfo{}, s.fail("info", server, err)
	}

	if len(info.Errors) > 0 {
		s.logger.Warn("info sections unavailable",
			zap.String("server", server),
			zap.Any("sections", info.Errors),
		)
	}

	return info, nil
}

// DatabaseCount returns the number of logical databases of server
func (s *Service) DatabaseCount(ctx context.Context, server string) (int, error) {
	c, err := s.client(server, DefaultDatabase)
	if err != nil {
		return 0, err
	}

	n, err := databaseCount(ctx, c)
	if err != nil {
		return 0, s.fail("config get databases", server, err)
	}

	return n, nil
}

// Databases returns the database indexes 0..count-1 of server
func (s *Service) Databases(ctx context.Context, server string) ([]int, error) {
	n, err := s.DatabaseCount(ctx, server)
	if err != nil {
		return nil, err
	}

	dbs := make([]int, n)
	for i := range dbs {
		dbs[i] = i
	}
	return dbs, nil
}

// Entries scans keys matching pattern and orders them by sort ("field:direction")
func (s *Service) Entries(ctx context.Context, server string, database int, pattern, sort string) ([]keyspace.Entry, error) {
	spec, err := ParseSort(sort)
	if err != nil {
		return nil, err
	}

	c, err := s.client(server, database)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	entries, err := s.scanner.Scan(ctx, c, pattern)
	if err != nil {
		return nil, s.fail("scan", server, err)
	}

	SortEntries(entries, spec)

	if s.logger.Core().Enabled(zap.DebugLevel) {
		s.logger.Debug("entries scanned",
			zap.String("server", server),
			zap.Int("database", database),
			zap.String("pattern", pattern),
			zap.Int("count", len(entries)),
			zap.Duration("took", time.Since(start)),
		)
	}

	return entries, nil
}

// Entry fetches a bounded view of the value stored at key
func (s *Service) Entry(ctx context.Context, server string, database int, key string) (keyspace.EntryData, error) {
	c, err := s.client(server, database)
	if err != nil {
		return keyspace.EntryData{}, err
	}

	data, err := s.fetcher.Fetch(ctx, c, key)
	if err != nil {
		return keyspace.EntryData{}, s.fail("fetch", server, err)
	}

	return data, nil
}

// DeleteEntries removes keys with a single DEL and reports how many existed
func (s *Service) DeleteEntries(ctx context.Context, server string, database int, keys []string) (int64, error) {
	c, err := s.client(server, database)
	if err != nil {
		return 0, err
	}

	if len(keys) == 0 {
		return 0, nil
	}

	n, err := c.Del(ctx, keys...).Result()
	if err != nil {
		return 0, s.fail("del", server, err)
	}

	s.logger.Info("entries deleted",
		zap.String("server", server),
		zap.Int("database", database),
		zap.Int("requested", len(keys)),
		zap.Int64("deleted", n),
	)

	return n, nil
}

func (s *Service) client(server string, database int) (*redis.Client, error) {
	if database < 0 && database != DefaultDatabase {
		return nil, malformed("invalid database %d", database)
	}
	return s.conn.Client(server, database)
}

// fail classifies err and logs backend failures
func (s *Service) fail(op, server string, err error) error {
	err = upstream(op, err)
	if IsUpstream(err) {
		s.logger.Warn("upstream request failed",
			zap.String("op", op),
			zap.String("server", server),
			zap.Error(err),
		)
	}
	return err
}
