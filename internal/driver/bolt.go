package driver

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/agenthands/neobatch/internal/core/model"
)

// BoltGateway writes over the Bolt protocol (Neo4j, Memgraph). Each batch
// runs in one explicit transaction so the driver never replays it.
type BoltGateway struct {
	Driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

func NewBoltGateway(ctx context.Context, uri, username, password, database string, logger *zap.Logger) (*BoltGateway, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	g := &BoltGateway{Driver: driver, database: database, logger: logger}
	if err := g.Ping(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}

	logger.Info("connected to graph store", zap.String("uri", uri))
	return g, nil
}

func (g *BoltGateway) Ping(ctx context.Context) error {
	if err := g.Driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (g *BoltGateway) Close(ctx context.Context) error {
	return g.Driver.Close(ctx)
}

func (g *BoltGateway) session(ctx context.Context) neo4j.SessionWithContext {
	return g.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.database,
	})
}

// inTransaction runs fn in one explicit transaction, rolling back on error.
func (g *BoltGateway) inTransaction(ctx context.Context, op string, fn func(tx neo4j.ExplicitTransaction) error) error {
	session := g.session(ctx)
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			g.logger.Warn("rollback failed", zap.String("op", op), zap.Error(rbErr))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit: %w", op, err)
	}
	return nil
}

// WriteNodes creates every node, then attaches labels to the ids the
// creation step returned.
func (g *BoltGateway) WriteNodes(ctx context.Context, batch model.NodeBatch) error {
	err := g.inTransaction(ctx, "node batch", func(tx neo4j.ExplicitTransaction) error {
		refs := make(map[int]int64, len(batch.Nodes))
		for _, n := range batch.Nodes {
			res, err := tx.Run(ctx, CreateNodeQuery, map[string]any{"props": n.Properties})
			if err != nil {
				return fmt.Errorf("failed to create node %d: %w", n.Ref, err)
			}
			rec, err := res.Single(ctx)
			if err != nil {
				return fmt.Errorf("failed to create node %d: %w", n.Ref, err)
			}
			id, ok := rec.Get("id")
			if !ok {
				return fmt.Errorf("node %d: store returned no id", n.Ref)
			}
			nodeID, ok := id.(int64)
			if !ok {
				return fmt.Errorf("node %d: unexpected id type %T", n.Ref, id)
			}
			refs[n.Ref] = nodeID
		}

		for _, l := range batch.Labels {
			nodeID, ok := refs[l.Target]
			if !ok {
				return fmt.Errorf("label %s references unknown node %d", l.Label, l.Target)
			}
			res, err := tx.Run(ctx, AttachLabelQuery(l.Label), map[string]any{"id": nodeID})
			if err != nil {
				return fmt.Errorf("failed to attach label %s: %w", l.Label, err)
			}
			if _, err := res.Consume(ctx); err != nil {
				return fmt.Errorf("failed to attach label %s: %w", l.Label, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.logger.Debug("node batch committed", zap.Int("nodes", len(batch.Nodes)), zap.Int("labels", len(batch.Labels)))
	return nil
}

func (g *BoltGateway) WriteRelations(ctx context.Context, relations []model.RelationCommand) error {
	err := g.inTransaction(ctx, "relation batch", func(tx neo4j.ExplicitTransaction) error {
		for _, rel := range relations {
			res, err := tx.Run(ctx, RelationQuery(rel), RelationParams(rel))
			if err != nil {
				return fmt.Errorf("failed to create relation %s: %w", rel.Type, err)
			}
			if _, err := res.Consume(ctx); err != nil {
				return fmt.Errorf("failed to create relation %s: %w", rel.Type, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.logger.Debug("relation batch committed", zap.Int("relations", len(relations)))
	return nil
}

// CreateIndexes runs each statement in auto-commit mode; Memgraph rejects
// index changes inside multi-statement transactions.
func (g *BoltGateway) CreateIndexes(ctx context.Context, specs []model.IndexSpec) error {
	session := g.session(ctx)
	defer session.Close(ctx)

	for _, spec := range specs {
		q, err := IndexQuery(spec)
		if err != nil {
			return err
		}
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			return fmt.Errorf("failed to create index %s(%s): %w", spec.Label, spec.Key, err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("failed to create index %s(%s): %w", spec.Label, spec.Key, err)
		}
	}
	return nil
}
