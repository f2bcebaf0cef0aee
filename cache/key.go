package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// emptyBodyDigest is the digest of a request without a body.
const emptyBodyDigest = "empty"

// Key identifies a cached response. Two requests share a Key only if they
// have the same method, path, body and trust partition.
//
// Contract:
// - Determinism: JSON bodies differing only in object key order produce
// the same BodyDigest.
// - Isolation: Partition is part of the identity, so a Key never matches
// across trust partitions.
type Key struct {
	Method     string
	Path       string
	BodyDigest string
	Partition  string
}

// NewKey builds a Key. The method is upper-cased; the body is digested
// with DigestBody.
func NewKey(method, path string, body []byte, partition string) Key {
	return Key{
		Method:     strings.ToUpper(method),
		Path:       path,
		BodyDigest: DigestBody(body),
		Partition:  partition,
	}
}

// String serializes the key.
// Format: trust:<partition>:<method>:<path>:<digest>
func (k Key) String() string {
	var b strings.Builder
	b.Grow(len(k.Partition) + len(k.Method) + len(k.Path) + len(k.BodyDigest) + 10)
	b.WriteString("trust:")
	b.WriteString(k.Partition)
	b.WriteByte(':')
	b.WriteString(k.Method)
	b.WriteByte(':')
	b.WriteString(k.Path)
	b.WriteByte(':')
	b.WriteString(k.BodyDigest)
	return b.String()
}

// DigestBody returns the first 16 hex characters of the SHA-256 of the
// body's canonical form. JSON bodies are canonicalized with sorted object
// keys; anything else is hashed as-is.
func DigestBody(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return emptyBodyDigest
	}

	data := body
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err == nil && !dec.More() {
		if canonical, err := canonicalize(v); err == nil {
			data = canonical
		}
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// canonicalize produces a deterministic JSON representation of the input.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}
