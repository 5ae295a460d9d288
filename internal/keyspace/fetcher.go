package keyspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultLimit caps the number of elements returned for aggregate values
const DefaultLimit = 1000

// Fetcher reads a key's value, truncating large aggregates
type Fetcher struct {
	limit int64
}

// NewFetcher creates a fetcher returning at most limit elements per aggregate
func NewFetcher(limit int) *Fetcher {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Fetcher{limit: int64(limit)}
}

// Fetch returns the type, true size and a bounded view of the value at key.
// Size and data are read in one MULTI block so they describe the same version
func (f *Fetcher) Fetch(ctx context.Context, c redis.Cmdable, key string) (EntryData, error) {
	typ, err := c.Type(ctx, key).Result()
	if err != nil {
		return EntryData{}, fmt.Errorf("type %q: %w", key, err)
	}

	kind, err := ParseKind(typ)
	if err != nil {
		return EntryData{}, err
	}

	var (
		size *redis.IntCmd
		read func() (any, error)
	)

	_, err = c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		size, read = f.queue(ctx, pipe, kind, key)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		// deleted between TYPE and MULTI
		return EntryData{}, &UnsupportedTypeError{Type: "none"}
	}
	if err != nil {
		return EntryData{}, fmt.Errorf("fetch %s %q: %w", kind, key, err)
	}

	data, err := read()
	if err != nil {
		return EntryData{}, fmt.Errorf("fetch %s %q: %w", kind, key, err)
	}

	return EntryData{Type: kind, Size: size.Val(), Data: data}, nil
}

// queue adds the size and value commands for kind to pipe. The returned
// reader decodes the value once the pipeline has been executed
func (f *Fetcher) queue(ctx context.Context, pipe redis.Pipeliner, kind Kind, key string) (*redis.IntCmd, func() (any, error)) {
	last := f.limit - 1

	switch kind {
	case KindString:
		size := pipe.StrLen(ctx, key)
		val := pipe.Get(ctx, key)
		return size, func() (any, error) { return val.Result() }

	case KindHash:
		size := pipe.HLen(ctx, key)
		val := pipe.HGetAll(ctx, key)
		return size, func() (any, error) { return val.Result() }

	case KindList:
		size := pipe.LLen(ctx, key)
		val := pipe.LRange(ctx, key, 0, last)
		return size, func() (any, error) { return val.Result() }

	case KindSet:
		// SRANDMEMBER with a positive count returns the whole set when it is small enough
		size := pipe.SCard(ctx, key)
		val := pipe.SRandMemberN(ctx, key, f.limit)
		return size, func() (any, error) { return val.Result() }

	case KindZSet:
		size := pipe.ZCard(ctx, key)
		val := pipe.ZRangeWithScores(ctx, key, 0, last)
		return size, func() (any, error) {
			zs, err := val.Result()
			if err != nil {
				return nil, err
			}
			members := make([]ScoredMember, len(zs))
			for i, z := range zs {
				members[i] = ScoredMember{Member: fmt.Sprint(z.Member), Score: z.Score}
			}
			return members, nil
		}

	case KindStream:
		size := pipe.XLen(ctx, key)
		val := pipe.XRangeN(ctx, key, "-", "+", f.limit)
		return size, func() (any, error) {
			msgs, err := val.Result()
			if err != nil {
				return nil, err
			}
			entries := make([]StreamEntry, len(msgs))
			for i, m := range msgs {
				entries[i] = StreamEntry{ID: m.ID, Values: m.Values}
			}
			return entries, nil
		}
	}

	panic(fmt.Sprintf("keyspace: unhandled kind %q", kind))
}
