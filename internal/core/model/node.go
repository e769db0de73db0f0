package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Entity is one record of the write stream. The concrete variants are
// NodeEntity, RelationEntity and UnknownEntity.
type Entity interface {
	entity()
}

// NodeEntity is a labelled node with scalar attributes. The explicit unique
// key, when present, is the attribute named by the writer's index key.
type NodeEntity struct {
	Label      string         `json:"label"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (*NodeEntity) entity() {}

// Key returns the value of the explicit unique key attribute, if the node carries one.
func (n *NodeEntity) Key(indexKey string) (any, bool) {
	if indexKey == "" || n.Attributes == nil {
		return nil, false
	}
	v, ok := n.Attributes[indexKey]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// UnknownEntity wraps a record that is neither a node nor a relation.
// The compiler skips it.
type UnknownEntity struct {
	Raw map[string]any
}

func (*UnknownEntity) entity() {}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be used as a label, relation type
// or property key inside a Cypher statement without quoting.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Validate checks that the node can be compiled into store commands.
func (n *NodeEntity) Validate() error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrMalformedEntity)
	}
	if !ValidIdentifier(n.Label) {
		return fmt.Errorf("%w: invalid label %q", ErrMalformedEntity, n.Label)
	}
	// Attribute names travel as parameters, so any non-empty name is fine.
	// Only the label and the match key are formatted into statements.
	for k, v := range n.Attributes {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: empty attribute name", ErrMalformedEntity)
		}
		if k == labelField {
			return fmt.Errorf("%w: attribute name %q is reserved for the label", ErrMalformedEntity, k)
		}
		if !IsScalar(v) {
			return fmt.Errorf("%w: attribute %q has non-scalar value %T", ErrMalformedEntity, k, v)
		}
	}
	return nil
}

// IsScalar reports whether v is a value the store accepts as a node property.
func IsScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}
