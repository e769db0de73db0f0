// Package compiler turns a queue of entities into the two ordered command
// lists sent to the store: node creation (with label attachment) and
// relation creation.
package compiler

import (
	"fmt"

	"github.com/agenthands/neobatch/internal/core/identity"
	"github.com/agenthands/neobatch/internal/core/model"
)

// CompileError reports the queue position of the entity that aborted a compile.
type CompileError struct {
	Position int
	Entity   model.Entity
	Err      error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile entity %d: %v", e.Position, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Resolver is the view of the dedup index a compile runs against.
type Resolver interface {
	Resolve(identity string) (int64, bool)
	Lookup(identity string) (int64, bool)
}

type Compiler struct {
	IndexKey string
}

func New(indexKey string) *Compiler {
	return &Compiler{IndexKey: indexKey}
}

// Compile walks entities in order. A node whose identity is new produces a
// NodeCommand and a LabelCommand; a known identity produces nothing. A
// relation produces a RelationCommand keyed on both endpoints. Unknown
// shapes are skipped. The first malformed entity aborts the whole compile.
func (c *Compiler) Compile(entities []model.Entity, ids Resolver) (*model.Batch, error) {
	batch := &model.Batch{Stats: model.BatchStats{Entities: len(entities)}}
	var relations []*model.RelationEntity

	for pos, e := range entities {
		switch ent := e.(type) {
		case *model.NodeEntity:
			if err := c.validateNode(ent); err != nil {
				return nil, &CompileError{Position: pos, Entity: e, Err: err}
			}
			c.compileNode(batch, ent, ids)

		case *model.RelationEntity:
			if err := c.validateRelation(ent); err != nil {
				return nil, &CompileError{Position: pos, Entity: e, Err: err}
			}
			relations = append(relations, ent)

		default:
			batch.Stats.Skipped++
		}
	}

	// Endpoints are looked up after every node of the batch has an id, so a
	// relation queued ahead of its nodes still resolves them.
	for _, rel := range relations {
		batch.Relations = append(batch.Relations, model.RelationCommand{
			Type:  rel.Type,
			Start: c.endpoint(rel.Start, ids),
			End:   c.endpoint(rel.End, ids),
		})
	}

	return batch, nil
}

func (c *Compiler) validateNode(n *model.NodeEntity) error {
	if err := n.Validate(); err != nil {
		return err
	}
	return c.checkReserved(n)
}

func (c *Compiler) validateRelation(r *model.RelationEntity) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := c.checkReserved(r.Start); err != nil {
		return fmt.Errorf("start of %s: %w", r.Type, err)
	}
	if err := c.checkReserved(r.End); err != nil {
		return fmt.Errorf("end of %s: %w", r.Type, err)
	}
	return nil
}

// checkReserved rejects a user attribute under the fingerprint property
// unless it is the configured index key.
func (c *Compiler) checkReserved(n *model.NodeEntity) error {
	if c.IndexKey == identity.FingerprintKey {
		return nil
	}
	if _, ok := n.Attributes[identity.FingerprintKey]; ok {
		return fmt.Errorf("%w: attribute %q is reserved for the node fingerprint", model.ErrMalformedEntity, identity.FingerprintKey)
	}
	return nil
}

func (c *Compiler) compileNode(batch *model.Batch, n *model.NodeEntity, ids Resolver) {
	key := identity.Of(n, c.IndexKey)
	localID, created := ids.Resolve(key.Identity)
	if !created {
		batch.Stats.Duplicates++
		return
	}

	props := make(map[string]any, len(n.Attributes)+1)
	for k, v := range n.Attributes {
		props[k] = v
	}
	if key.Name == identity.FingerprintKey {
		props[identity.FingerprintKey] = key.Value
	}

	ref := len(batch.Nodes)
	batch.Nodes = append(batch.Nodes, model.NodeCommand{
		Ref:        ref,
		LocalID:    localID,
		Label:      n.Label,
		KeyName:    key.Name,
		KeyValue:   key.Value,
		Properties: props,
	})
	batch.Labels = append(batch.Labels, model.LabelCommand{Target: ref, Label: n.Label})
}

func (c *Compiler) endpoint(n *model.NodeEntity, ids Resolver) model.Endpoint {
	key := identity.Of(n, c.IndexKey)
	localID, _ := ids.Lookup(key.Identity)
	return model.Endpoint{
		Label:    n.Label,
		KeyName:  key.Name,
		KeyValue: key.Value,
		LocalID:  localID,
	}
}
