package model

import "fmt"

// RelationEntity connects two nodes. Start and End are matched in the store
// by their unique key (explicit key or content fingerprint).
type RelationEntity struct {
	Type  string      `json:"relation"`
	Start *NodeEntity `json:"start"`
	End   *NodeEntity `json:"end"`
}

func (*RelationEntity) entity() {}

func (r *RelationEntity) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil relation", ErrMalformedEntity)
	}
	if !ValidIdentifier(r.Type) {
		return fmt.Errorf("%w: invalid relation type %q", ErrMalformedEntity, r.Type)
	}
	if r.Start == nil || r.End == nil {
		return fmt.Errorf("%w: relation %s is missing an endpoint", ErrMalformedEntity, r.Type)
	}
	if err := r.Start.Validate(); err != nil {
		return fmt.Errorf("start of %s: %w", r.Type, err)
	}
	if err := r.End.Validate(); err != nil {
		return fmt.Errorf("end of %s: %w", r.Type, err)
	}
	return nil
}
