// Package identity derives node identities and maps them to local sequence
// ids for the lifetime of a writer.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/agenthands/neobatch/internal/core/model"
)

// FingerprintKey is the property name under which a node's fingerprint is
// stored when it has no explicit unique key.
const FingerprintKey = "sha1"

// Fingerprint digests an attribute set. Keys and values are lower-cased and
// trimmed, so {"Name": "Bob "} and {"name": "bob"} produce the same digest.
func Fingerprint(attrs map[string]any) string {
	type pair struct{ key, orig, value string }

	pairs := make([]pair, 0, len(attrs))
	for k, v := range attrs {
		pairs = append(pairs, pair{key: normalize(k), orig: k, value: normalize(stringify(v))})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].orig < pairs[j].orig
	})

	var sb strings.Builder
	for _, p := range pairs {
		sb.WriteString(p.key)
		sb.WriteString(p.value)
	}
	sum := sha1.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// NodeFingerprint covers the label as well as the attributes, so equal
// attribute sets under different labels stay distinct.
func NodeFingerprint(n *model.NodeEntity) string {
	attrs := make(map[string]any, len(n.Attributes)+1)
	for k, v := range n.Attributes {
		attrs[k] = v
	}
	attrs["label"] = n.Label
	return Fingerprint(attrs)
}

// Key is the resolved identity of a node: the property the store matches on
// and the index entry it is deduplicated under.
type Key struct {
	Name     string
	Value    any
	Identity string
}

// Of resolves a node's identity. The explicit key attribute wins; without it
// the node is identified by its fingerprint under FingerprintKey.
func Of(n *model.NodeEntity, indexKey string) Key {
	if v, ok := n.Key(indexKey); ok {
		return Key{
			Name:     indexKey,
			Value:    v,
			Identity: fmt.Sprintf("key:%s:%s=%s:%s", n.Label, indexKey, kindOf(v), stringify(v)),
		}
	}
	fp := NodeFingerprint(n)
	return Key{Name: FingerprintKey, Value: fp, Identity: "sha1:" + fp}
}

// kindOf separates values the store compares as different, such as "1"
// and 1. Integers and floats share a kind because the store matches 1 = 1.0.
func kindOf(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	default:
		return "number"
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
