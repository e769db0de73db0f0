package driver

import (
	"context"

	"github.com/agenthands/neobatch/internal/core/model"
)

// Gateway is the write side of the remote graph store. Each write call is a
// single request or transaction carrying the whole command list; nothing is
// retried here.
type Gateway interface {
	WriteNodes(ctx context.Context, batch model.NodeBatch) error
	WriteRelations(ctx context.Context, relations []model.RelationCommand) error
	CreateIndexes(ctx context.Context, specs []model.IndexSpec) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
