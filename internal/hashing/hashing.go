// Package hashing computes stable content hashes for canonical records.
//
// The hash is used by the state store to decide whether a record changed
// since the previous snapshot. It must be deterministic regardless of map
// iteration order: the record is serialized as JSON with keys sorted and
// the SHA-256 of that serialization is returned as a hex string.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Stable returns a deterministic content hash for the given record.
// Two records with the same keys and values always produce the same hash,
// independent of insertion order. Nested maps and slices are supported.
func Stable(record map[string]any) string {
	var b strings.Builder
	writeValue(&b, record)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// writeValue serializes v into b in a canonical form: map keys sorted,
// scalars via encoding/json so numeric formatting is consistent.
func writeValue(b *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeScalar(b, k)
			b.WriteByte(':')
			writeValue(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, item)
		}
		b.WriteByte(']')
	default:
		writeScalar(b, v)
	}
}

func writeScalar(b *strings.Builder, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		// Unmarshalable values (channels etc.) never appear in records;
		// fall back to fmt so the hash stays total.
		b.WriteString(fmt.Sprintf("%v", v))
		return
	}
	b.Write(data)
}
