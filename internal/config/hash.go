package config

import (
	"encoding/json"
	"hash/fnv"
)

// hashBytes returns a stable 64-bit hash of bytes. Empty input returns 0.
func hashBytes(parts ...[]byte) uint64 {
	n := 0
	for _, b := range parts {
		n += len(b)
	}
	if n == 0 {
		return 0
	}
	h := fnv.New64a()
	for _, b := range parts {
		_, _ = h.Write(b)
		// separator so ("ab","c") and ("a","bc") differ
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// hashJSON hashes the JSON encoding of v. Map keys are sorted by
// encoding/json, so the result does not depend on source key order.
func hashJSON(v any) uint64 {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}
