package keyspace

import "encoding/json"

// NoExpiry is the TTL reported for keys without an expiration
const NoExpiry = -1

// Entry is the metadata of one key as produced by a scan
type Entry struct {
	Key  string `json:"key"`
	Type Kind   `json:"type"`
	TTL  int64  `json:"ttl"`  // seconds, NoExpiry when persistent
	Size int64  `json:"size"` // byte length for strings, element count otherwise
}

// EntryData is a bounded view of a key's value.
// Size always holds the true cardinality, even when Data is truncated
type EntryData struct {
	Type Kind  `json:"type"`
	Size int64 `json:"size"`
	// Data is string, map[string]string, []string, []ScoredMember or []StreamEntry depending on Type
	Data any `json:"data"`
}

// ScoredMember is a sorted set member, encoded as a [member, score] pair
type ScoredMember struct {
	Member string
	Score  float64
}

func (m ScoredMember) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{m.Member, m.Score})
}

// StreamEntry is one stream record, encoded as an [id, fields] pair
type StreamEntry struct {
	ID     string
	Values map[string]any
}

func (e StreamEntry) MarshalJSON() ([]byte, error) {
	values := e.Values
	if values == nil {
		values = map[string]any{}
	}
	return json.Marshal([]any{e.ID, values})
}
