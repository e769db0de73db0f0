package core

import (
	"context"
	"sync"

	"github.com/agenthands/neobatch/internal/core/model"
)

// MockGateway records every call in order and fails the phases it is told to.
type MockGateway struct {
	mu sync.Mutex

	Calls        []string
	NodeBatches  []model.NodeBatch
	RelBatches   [][]model.RelationCommand
	IndexSpecs   []model.IndexSpec
	NodesErr     error
	RelationsErr error
	IndexErr     error
	Closed       bool

	// OnWriteNodes runs inside WriteNodes, before it returns.
	OnWriteNodes func()
	// BlockNodes makes WriteNodes wait for its context to end.
	BlockNodes bool
}

func (m *MockGateway) WriteNodes(ctx context.Context, batch model.NodeBatch) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, "nodes")
	m.NodeBatches = append(m.NodeBatches, batch)
	hook := m.OnWriteNodes
	err := m.NodesErr
	block := m.BlockNodes
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (m *MockGateway) WriteRelations(ctx context.Context, relations []model.RelationCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "relations")
	m.RelBatches = append(m.RelBatches, relations)
	return m.RelationsErr
}

func (m *MockGateway) CreateIndexes(ctx context.Context, specs []model.IndexSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "indexes")
	m.IndexSpecs = append(m.IndexSpecs, specs...)
	return m.IndexErr
}

func (m *MockGateway) Ping(ctx context.Context) error {
	return nil
}

func (m *MockGateway) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockGateway) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}
