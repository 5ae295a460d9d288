package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// InfoSections are requested from the server, in this order, by ServerInfo
var InfoSections = []string{
	"server", "clients", "memory", "persistence", "threads",
	"stats", "replication", "cpu", "commandstats", "latencystats",
	"sentinel", "cluster", "modules", "keyspace", "errorstats",
}

// ServerInfo is a snapshot of INFO sections and the last save time
type ServerInfo struct {
	LastSave time.Time                 `json:"last_save"`
	Info     map[string]map[string]any `json:"info"`
	// Errors lists sections that could not be read
	Errors map[string]string `json:"errors,omitempty"`
}

type infoReader interface {
	Info(ctx context.Context, section ...string) *redis.StringCmd
	LastSave(ctx context.Context) *redis.IntCmd
}

// collectInfo requests every section and LASTSAVE concurrently and waits for all of them.
// A failing section is reported in Errors; the snapshot fails only when
// LASTSAVE fails or no section could be read
func collectInfo(ctx context.Context, c infoReader) (ServerInfo, error) {
	var (
		g        errgroup.Group
		lastSave int64
		sections = make([]map[string]any, len(InfoSections))
		errs     = make([]error, len(InfoSections))
	)

	for i, section := range InfoSections {
		g.Go(func() error {
			raw, err := c.Info(ctx, section).Result()
			if err != nil {
				errs[i] = err
				return nil
			}
			sections[i] = ParseInfo(raw)
			return nil
		})
	}

	g.Go(func() error {
		var err error
		lastSave, err = c.LastSave(ctx).Result()
		return err
	})

	if err := g.Wait(); err != nil {
		return ServerInfo{}, &UpstreamError{Op: "lastsave", Err: err}
	}

	info := ServerInfo{
		LastSave: time.Unix(lastSave, 0).UTC(),
		Info:     make(map[string]map[string]any, len(InfoSections)),
	}

	for i, section := range InfoSections {
		if errs[i] != nil {
			if info.Errors == nil {
				info.Errors = make(map[string]string)
			}
			info.Errors[section] = errs[i].Error()
			continue
		}
		info.Info[section] = sections[i]
	}

	if len(info.Info) == 0 {
		return ServerInfo{}, &UpstreamError{Op: "info", Err: errs[0]}
	}

	return info, nil
}

// ParseInfo converts an INFO reply into a field map. Numeric values become
// int64 or float64, "k=v,k=v" values become nested maps and fields repeated
// on several lines (such as "module") are collected into a slice
func ParseInfo(raw string) map[string]any {
	fields := make(map[string]any)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		parsed := parseInfoValue(value)
		switch prev := fields[name].(type) {
		case nil:
			fields[name] = parsed
		case []any:
			fields[name] = append(prev, parsed)
		default:
			fields[name] = []any{prev, parsed}
		}
	}

	return fields
}

func parseInfoValue(value string) any {
	if strings.Contains(value, "=") {
		if nested, ok := parseInfoPairs(value); ok {
			return nested
		}
	}
	return parseScalar(value)
}

// parseInfoPairs parses "a=1,b=2". It fails if any element lacks '='
func parseInfoPairs(value string) (map[string]any, bool) {
	parts := strings.Split(value, ",")
	nested := make(map[string]any, len(parts))
	for _, part := range parts {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, false
		}
		nested[k] = parseScalar(v)
	}
	return nested, true
}

func parseScalar(s string) any {
	if s == "" || strings.Trim(s, "0123456789.-+eE") != "" {
		return s
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

type configReader interface {
	ConfigGet(ctx context.Context, parameter string) *redis.MapStringStringCmd
}

// databaseCount reads the number of logical databases from CONFIG GET
func databaseCount(ctx context.Context, c configReader) (int, error) {
	cfg, err := c.ConfigGet(ctx, "databases").Result()
	if err != nil {
		return 0, err
	}

	raw, ok := cfg["databases"]
	if !ok {
		return 0, errors.New("databases setting not reported")
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("databases setting %q: %w", raw, err)
	}

	return n, nil
}
