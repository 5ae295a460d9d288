package gateway

import (
	"testing"

	"github.com/eternalApril/moonview/internal/keyspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		in      string
		want    SortSpec
		wantErr bool
	}{
		{"", SortSpec{Field: SortKey}, false},
		{"key:asc", SortSpec{Field: SortKey}, false},
		{"size:desc", SortSpec{Field: SortSize, Desc: true}, false},
		{"ttl", SortSpec{Field: SortTTL}, false},
		{"type:asc", SortSpec{Field: SortType}, false},
		{"name:asc", SortSpec{}, true},
		{"size:up", SortSpec{}, true},
		{":desc", SortSpec{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSort(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func keys(entries []keyspace.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

func TestSortEntries(t *testing.T) {
	scan := func() []keyspace.Entry {
		return []keyspace.Entry{
			{Key: "c", Type: keyspace.KindString, TTL: -1, Size: 3},
			{Key: "a", Type: keyspace.KindList, TTL: 10, Size: 1},
			{Key: "b", Type: keyspace.KindHash, TTL: 5, Size: 2},
			{Key: "d", Type: keyspace.KindHash, TTL: -1, Size: 2},
		}
	}

	tests := []struct {
		sort string
		want []string
	}{
		{"key:asc", []string{"a", "b", "c", "d"}},
		{"key:desc", []string{"d", "c", "b", "a"}},
		{"size:desc", []string{"c", "b", "d", "a"}},
		{"size:asc", []string{"a", "b", "d", "c"}},
		{"ttl:asc", []string{"c", "d", "b", "a"}},
		{"ttl:desc", []string{"a", "b", "c", "d"}},
		{"type:asc", []string{"b", "d", "a", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.sort, func(t *testing.T) {
			spec, err := ParseSort(tt.sort)
			require.NoError(t, err)

			entries := scan()
			SortEntries(entries, spec)
			assert.Equal(t, tt.want, keys(entries))
		})
	}
}

func TestSortEntries_SizeDesc(t *testing.T) {
	entries := []keyspace.Entry{{Key: "x", Size: 3}, {Key: "y", Size: 1}, {Key: "z", Size: 2}}
	SortEntries(entries, SortSpec{Field: SortSize, Desc: true})

	sizes := []int64{entries[0].Size, entries[1].Size, entries[2].Size}
	assert.Equal(t, []int64{3, 2, 1}, sizes)
}
