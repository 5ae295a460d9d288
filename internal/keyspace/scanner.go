// Package keyspace enumerates keys of a Redis-compatible server and fetches
// bounded views of their values.
package keyspace

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultScanCount is the COUNT hint passed to SCAN when none is configured
const DefaultScanCount = 1000

//go:embed entries.lua
var entriesLua string

// entriesScript runs the whole scan server-side so that type, ttl and size
// of a key are read together
var entriesScript = redis.NewScript(entriesLua)

// Scanner lists keys matching a glob pattern
type Scanner struct {
	count int
}

// NewScanner creates a scanner using count as the SCAN COUNT hint
func NewScanner(count int) *Scanner {
	if count <= 0 {
		count = DefaultScanCount
	}
	return &Scanner{count: count}
}

// Scan returns every key matching pattern, in scan order
func (s *Scanner) Scan(ctx context.Context, c redis.Scripter, pattern string) ([]Entry, error) {
	if pattern == "" {
		pattern = "*"
	}

	raw, err := entriesScript.Run(ctx, c, nil, pattern, s.count).Slice()
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", pattern, err)
	}

	entries := make([]Entry, 0, len(raw))
	for i, row := range raw {
		entry, err := parseEntry(row)
		if err != nil {
			return nil, fmt.Errorf("scan %q: row %d: %w", pattern, i, err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// parseEntry decodes one {key, type, ttl, size} tuple of the script reply
func parseEntry(row any) (Entry, error) {
	fields, ok := row.([]any)
	if !ok || len(fields) != 4 {
		return Entry{}, fmt.Errorf("unexpected reply %v", row)
	}

	key, ok := fields[0].(string)
	if !ok {
		return Entry{}, fmt.Errorf("unexpected key %v", fields[0])
	}

	typ, ok := fields[1].(string)
	if !ok {
		return Entry{}, fmt.Errorf("unexpected type %v", fields[1])
	}
	kind, err := ParseKind(typ)
	if err != nil {
		return Entry{}, err
	}

	ttl, ok := fields[2].(int64)
	if !ok {
		return Entry{}, fmt.Errorf("unexpected ttl %v", fields[2])
	}

	size, ok := fields[3].(int64)
	if !ok {
		return Entry{}, fmt.Errorf("unexpected size %v", fields[3])
	}

	return Entry{Key: key, Type: kind, TTL: ttl, Size: size}, nil
}
