package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"sort"
)

// WriteStableJSON writes a canonical JSON-like representation of v into b.
// Map keys are sorted recursively; arrays preserve order.
func WriteStableJSON(b *bytes.Buffer, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		writeSortedMap(b, len(t), func(yield func(string, any)) {
			for k, val := range t {
				yield(k, val)
			}
		})
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			WriteStableJSON(b, e)
		}
		b.WriteByte(']')
	case string, float64, bool, int, int64:
		writeScalar(b, t)
	default:
		rv := reflect.ValueOf(v)
		switch {
		case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
			writeSortedMap(b, rv.Len(), func(yield func(string, any)) {
				iter := rv.MapRange()
				for iter.Next() {
					yield(iter.Key().String(), iter.Value().Interface())
				}
			})
		case rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array:
			b.WriteByte('[')
			for i := 0; i < rv.Len(); i++ {
				if i > 0 {
					b.WriteByte(',')
				}
				WriteStableJSON(b, rv.Index(i).Interface())
			}
			b.WriteByte(']')
		default:
			writeScalar(b, t)
		}
	}
}

func writeScalar(b *bytes.Buffer, v any) {
	bs, err := json.Marshal(v)
	if err != nil {
		b.WriteString("null")
		return
	}
	b.Write(bs)
}

func writeSortedMap(b *bytes.Buffer, size int, each func(yield func(string, any))) {
	keys := make([]string, 0, size)
	values := make(map[string]any, size)
	each(func(k string, v any) {
		keys = append(keys, k)
		values[k] = v
	})
	sort.Strings(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeScalar(b, k)
		b.WriteByte(':')
		WriteStableJSON(b, values[k])
	}
	b.WriteByte('}')
}

// StableJSONBytes returns the canonical bytes for v.
func StableJSONBytes(v any) []byte {
	var b bytes.Buffer
	WriteStableJSON(&b, v)
	return b.Bytes()
}

// Fingerprint returns the SHA-256 hex digest of the canonical form of parts.
// Identical inputs always yield identical digests regardless of map order.
func Fingerprint(parts ...any) string {
	seq := make([]any, len(parts))
	copy(seq, parts)
	sum := sha256.Sum256(StableJSONBytes(seq))
	return hex.EncodeToString(sum[:])
}
