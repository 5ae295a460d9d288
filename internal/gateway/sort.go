package gateway

import (
	"cmp"
	"slices"
	"strings"

	"github.com/eternalApril/moonview/internal/keyspace"
)

// DefaultSort orders entries by key, ascending
const DefaultSort = "key:asc"

// SortField names an Entry attribute entries can be ordered by
type SortField string

const (
	SortKey  SortField = "key"
	SortType SortField = "type"
	SortTTL  SortField = "ttl"
	SortSize SortField = "size"
)

// SortSpec is a parsed "field:direction" ordering
type SortSpec struct {
	Field SortField
	Desc  bool
}

// ParseSort parses "field:direction". An empty string yields DefaultSort and
// a missing direction means ascending
func ParseSort(s string) (SortSpec, error) {
	if s == "" {
		s = DefaultSort
	}

	field, dir, _ := strings.Cut(s, ":")

	spec := SortSpec{Field: SortField(field)}
	switch spec.Field {
	case SortKey, SortType, SortTTL, SortSize:
	default:
		return SortSpec{}, malformed("invalid sort field %q", field)
	}

	switch dir {
	case "", "asc":
	case "desc":
		spec.Desc = true
	default:
		return SortSpec{}, malformed("invalid sort direction %q", dir)
	}

	return spec, nil
}

// SortEntries orders entries in place. Equal entries keep their scan order
// in both directions
func SortEntries(entries []keyspace.Entry, spec SortSpec) {
	compare := compareBy(spec.Field)
	slices.SortStableFunc(entries, func(a, b keyspace.Entry) int {
		if spec.Desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
}

func compareBy(field SortField) func(a, b keyspace.Entry) int {
	switch field {
	case SortType:
		return func(a, b keyspace.Entry) int { return cmp.Compare(a.Type, b.Type) }
	case SortTTL:
		return func(a, b keyspace.Entry) int { return cmp.Compare(a.TTL, b.TTL) }
	case SortSize:
		return func(a, b keyspace.Entry) int { return cmp.Compare(a.Size, b.Size) }
	default:
		return func(a, b keyspace.Entry) int { return cmp.Compare(a.Key, b.Key) }
	}
}
