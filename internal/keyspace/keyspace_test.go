package keyspace

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupClient starts an in-process server and connects a client to it
func setupClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() }) //nolint:errcheck
	return rdb, mr
}

// seed writes one key of every kind
func seed(t *testing.T, rdb *redis.Client) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, rdb.Set(ctx, "user:name", "moon", 0).Err())
	require.NoError(t, rdb.HSet(ctx, "user:profile", "a", "1", "b", "2").Err())
	require.NoError(t, rdb.RPush(ctx, "queue", "x", "y", "z").Err())
	require.NoError(t, rdb.SAdd(ctx, "tags", "red", "green").Err())
	require.NoError(t, rdb.ZAdd(ctx, "scores", redis.Z{Score: 1, Member: "a"}, redis.Z{Score: 2, Member: "b"}).Err())
	require.NoError(t, rdb.XAdd(ctx, &redis.XAddArgs{Stream: "events", ID: "1-0", Values: []string{"f", "v"}}).Err())
}

func byKey(entries []Entry) map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Key] = e
	}
	return m
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	for _, bad := range []string{"none", "ReJSON-RL", "", "String"} {
		_, err := ParseKind(bad)
		assert.ErrorIs(t, err, ErrUnsupportedType, bad)
	}
}

func TestScanner_AllKinds(t *testing.T) {
	rdb, mr := setupClient(t)
	seed(t, rdb)
	mr.SetTTL("user:name", 90*time.Second)

	entries, err := NewScanner(0).Scan(context.Background(), rdb, "*")
	require.NoError(t, err)
	require.Len(t, entries, 6)

	got := byKey(entries)
	assert.Equal(t, Entry{Key: "user:name", Type: KindString, TTL: 90, Size: 4}, got["user:name"])
	assert.Equal(t, Entry{Key: "user:profile", Type: KindHash, TTL: NoExpiry, Size: 2}, got["user:profile"])
	assert.Equal(t, Entry{Key: "queue", Type: KindList, TTL: NoExpiry, Size: 3}, got["queue"])
	assert.Equal(t, Entry{Key: "tags", Type: KindSet, TTL: NoExpiry, Size: 2}, got["tags"])
	assert.Equal(t, Entry{Key: "scores", Type: KindZSet, TTL: NoExpiry, Size: 2}, got["scores"])
	assert.Equal(t, Entry{Key: "events", Type: KindStream, TTL: NoExpiry, Size: 1}, got["events"])

	for _, e := range entries {
		assert.Contains(t, Kinds, e.Type)
		assert.True(t, e.TTL == NoExpiry || e.TTL >= 0)
	}
}

func TestScanner_Pattern(t *testing.T) {
	rdb, _ := setupClient(t)
	seed(t, rdb)

	entries, err := NewScanner(0).Scan(context.Background(), rdb, "user:*")
	require.NoError(t, err)

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"user:name", "user:profile"}, keys)

	entries, err = NewScanner(0).Scan(context.Background(), rdb, "nothing:*")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScanner_ManyPages(t *testing.T) {
	rdb, _ := setupClient(t)
	ctx := context.Background()

	const total = 2500
	pipe := rdb.Pipeline()
	for i := 0; i < total; i++ {
		pipe.Set(ctx, fmt.Sprintf("key:%d", i), "v", 0)
	}
	_, err := pipe.Exec(ctx)
	require.NoError(t, err)

	entries, err := NewScanner(100).Scan(ctx, rdb, "key:*")
	require.NoError(t, err)
	assert.Len(t, byKey(entries), total)
}

func TestParseEntry_Malformed(t *testing.T) {
	tests := []struct {
		name string
		row  any
	}{
		{"not a list", "key"},
		{"short", []any{"k", "string", int64(-1)}},
		{"bad key", []any{int64(1), "string", int64(-1), int64(1)}},
		{"bad type", []any{"k", "module", int64(-1), int64(1)}},
		{"bad ttl", []any{"k", "string", "-1", int64(1)}},
		{"bad size", []any{"k", "string", int64(-1), "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseEntry(tt.row)
			assert.Error(t, err)
		})
	}
}

func TestFetcher_RoundTrip(t *testing.T) {
	rdb, _ := setupClient(t)
	seed(t, rdb)
	ctx := context.Background()
	f := NewFetcher(0)

	data, err := f.Fetch(ctx, rdb, "user:profile")
	require.NoError(t, err)
	assert.Equal(t, KindHash, data.Type)
	assert.Equal(t, int64(2), data.Size)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, data.Data)

	data, err = f.Fetch(ctx, rdb, "user:name")
	require.NoError(t, err)
	assert.Equal(t, EntryData{Type: KindString, Size: 4, Data: "moon"}, data)

	data, err = f.Fetch(ctx, rdb, "queue")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, data.Data)

	data, err = f.Fetch(ctx, rdb, "tags")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"red", "green"}, data.Data)

	data, err = f.Fetch(ctx, rdb, "scores")
	require.NoError(t, err)
	assert.Equal(t, []ScoredMember{{"a", 1}, {"b", 2}}, data.Data)

	data, err = f.Fetch(ctx, rdb, "events")
	require.NoError(t, err)
	assert.Equal(t, []StreamEntry{{ID: "1-0", Values: map[string]any{"f": "v"}}}, data.Data)
}

func TestFetcher_MissingKey(t *testing.T) {
	rdb, _ := setupClient(t)

	_, err := NewFetcher(0).Fetch(context.Background(), rdb, "ghost")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestFetcher_TruncatesList(t *testing.T) {
	rdb, _ := setupClient(t)
	ctx := context.Background()

	values := make([]any, 5000)
	for i := range values {
		values[i] = fmt.Sprintf("item-%d", i)
	}
	require.NoError(t, rdb.RPush(ctx, "big", values...).Err())

	data, err := NewFetcher(DefaultLimit).Fetch(ctx, rdb, "big")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), data.Size)

	list, ok := data.Data.([]string)
	require.True(t, ok)
	require.Len(t, list, 1000)
	for i, v := range list {
		assert.Equal(t, values[i], v)
	}
}

func TestFetcher_TruncatesAggregates(t *testing.T) {
	rdb, _ := setupClient(t)
	ctx := context.Background()
	const n = 30

	pipe := rdb.Pipeline()
	for i := 0; i < n; i++ {
		pipe.SAdd(ctx, "set", fmt.Sprintf("m%d", i))
		pipe.ZAdd(ctx, "zset", redis.Z{Score: float64(i), Member: fmt.Sprintf("m%d", i)})
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: "stream", ID: fmt.Sprintf("%d-0", i+1), Values: []string{"i", fmt.Sprint(i)}})
		pipe.HSet(ctx, "hash", fmt.Sprintf("f%d", i), i)
		pipe.Append(ctx, "str", "0123456789")
	}
	_, err := pipe.Exec(ctx)
	require.NoError(t, err)

	f := NewFetcher(10)

	set, err := f.Fetch(ctx, rdb, "set")
	require.NoError(t, err)
	assert.Equal(t, int64(n), set.Size)
	members := set.Data.([]string)
	assert.Len(t, members, 10)
	for _, m := range members {
		ok, err := rdb.SIsMember(ctx, "set", m).Result()
		require.NoError(t, err)
		assert.True(t, ok)
	}

	zset, err := f.Fetch(ctx, rdb, "zset")
	require.NoError(t, err)
	assert.Equal(t, int64(n), zset.Size)
	ranked := zset.Data.([]ScoredMember)
	require.Len(t, ranked, 10)
	assert.Equal(t, ScoredMember{"m0", 0}, ranked[0])
	assert.Equal(t, ScoredMember{"m9", 9}, ranked[9])

	stream, err := f.Fetch(ctx, rdb, "stream")
	require.NoError(t, err)
	assert.Equal(t, int64(n), stream.Size)
	records := stream.Data.([]StreamEntry)
	require.Len(t, records, 10)
	assert.Equal(t, "1-0", records[0].ID)
	assert.Equal(t, "10-0", records[9].ID)

	// hashes and strings are never truncated
	hash, err := f.Fetch(ctx, rdb, "hash")
	require.NoError(t, err)
	assert.Len(t, hash.Data, n)

	str, err := f.Fetch(ctx, rdb, "str")
	require.NoError(t, err)
	assert.Equal(t, int64(10*n), str.Size)
	assert.Len(t, str.Data, 10*n)
}

func TestEntryData_JSON(t *testing.T) {
	tests := []struct {
		name string
		data EntryData
		want string
	}{
		{
			"zset pairs",
			EntryData{Type: KindZSet, Size: 1, Data: []ScoredMember{{"a", 1.5}}},
			`{"type":"zset","size":1,"data":[["a",1.5]]}`,
		},
		{
			"stream pairs",
			EntryData{Type: KindStream, Size: 1, Data: []StreamEntry{{ID: "1-0", Values: map[string]any{"f": "v"}}}},
			`{"type":"stream","size":1,"data":[["1-0",{"f":"v"}]]}`,
		},
		{
			"stream without fields",
			EntryData{Type: KindStream, Size: 1, Data: []StreamEntry{{ID: "1-0"}}},
			`{"type":"stream","size":1,"data":[["1-0",{}]]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.data)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestUnsupportedTypeError(t *testing.T) {
	_, err := ParseKind("none")

	var ute *UnsupportedTypeError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "none", ute.Type)
	assert.EqualError(t, err, "unsupported type: none")
}
