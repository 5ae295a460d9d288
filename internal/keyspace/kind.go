package keyspace

import "errors"

// Kind is one of the value types the gateway knows how to inspect
type Kind string

const (
	KindString Kind = "string"
	KindHash   Kind = "hash"
	KindList   Kind = "list"
	KindSet    Kind = "set"
	KindZSet   Kind = "zset"
	KindStream Kind = "stream"
)

// ErrUnsupportedType is returned for keys whose TYPE is outside the known kinds,
// including missing keys which report "none"
var ErrUnsupportedType = errors.New("unsupported type")

// UnsupportedTypeError carries the TYPE reply that could not be handled
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return "unsupported type: " + e.Type
}

func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}

// Kinds lists every recognized kind
var Kinds = []Kind{KindString, KindHash, KindList, KindSet, KindZSet, KindStream}

// ParseKind maps a TYPE reply to a Kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindString, KindHash, KindList, KindSet, KindZSet, KindStream:
		return k, nil
	}
	return "", &UnsupportedTypeError{Type: s}
}
