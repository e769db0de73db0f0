package compiler

import (
	"errors"
	"testing"

	"github.com/agenthands/neobatch/internal/core/identity"
	"github.com/agenthands/neobatch/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func person(name string) *model.NodeEntity {
	return &model.NodeEntity{Label: "Person", Attributes: map[string]any{"name": name}}
}

func TestCompile_AliceKnowsBob(t *testing.T) {
	alice, bob := person("Alice"), person("Bob")
	entities := []model.Entity{
		alice,
		bob,
		&model.RelationEntity{Type: "KNOWS", Start: person("Alice"), End: person("Bob")},
	}

	stage := identity.NewIndex().Stage()
	batch, err := New("id").Compile(entities, stage)
	require.NoError(t, err)

	require.Len(t, batch.Nodes, 2)
	require.Len(t, batch.Labels, 2)
	require.Len(t, batch.Relations, 1)

	assert.Equal(t, model.LabelCommand{Target: 0, Label: "Person"}, batch.Labels[0])
	assert.Equal(t, model.LabelCommand{Target: 1, Label: "Person"}, batch.Labels[1])

	// Label is not a property; the fingerprint is added for matching.
	assert.NotContains(t, batch.Nodes[0].Properties, "label")
	assert.Equal(t, identity.NodeFingerprint(alice), batch.Nodes[0].Properties["sha1"])

	rel := batch.Relations[0]
	assert.Equal(t, "KNOWS", rel.Type)
	assert.Equal(t, "sha1", rel.Start.KeyName)
	assert.Equal(t, identity.NodeFingerprint(alice), rel.Start.KeyValue)
	assert.Equal(t, identity.NodeFingerprint(bob), rel.End.KeyValue)

	// Endpoints resolve to the ids created for the node commands in this batch.
	assert.Equal(t, batch.Nodes[0].LocalID, rel.Start.LocalID)
	assert.Equal(t, batch.Nodes[1].LocalID, rel.End.LocalID)
	assert.NotZero(t, rel.Start.LocalID)
}

func TestCompile_DedupWithinBatch(t *testing.T) {
	entities := []model.Entity{
		person("Alice"),
		&model.NodeEntity{Label: "Person", Attributes: map[string]any{"Name": " alice "}},
	}

	batch, err := New("id").Compile(entities, identity.NewIndex().Stage())
	require.NoError(t, err)

	assert.Len(t, batch.Nodes, 1)
	assert.Len(t, batch.Labels, 1)
	assert.Equal(t, 1, batch.Stats.Duplicates)
}

func TestCompile_DedupAcrossBatches(t *testing.T) {
	x := identity.NewIndex()
	c := New("id")

	s := x.Stage()
	first, err := c.Compile([]model.Entity{person("Alice")}, s)
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	s = x.Stage()
	second, err := c.Compile([]model.Entity{
		person("Alice"),
		&model.RelationEntity{Type: "LIKES", Start: person("Alice"), End: person("Carol")},
	}, s)
	require.NoError(t, err)

	assert.Empty(t, second.Nodes)
	require.Len(t, second.Relations, 1)
	assert.Equal(t, first.Nodes[0].LocalID, second.Relations[0].Start.LocalID)
	assert.Zero(t, second.Relations[0].End.LocalID, "never-seen endpoint has no local id")
}

func TestCompile_ExplicitKey(t *testing.T) {
	entities := []model.Entity{
		&model.NodeEntity{Label: "Person", Attributes: map[string]any{"id": int64(1), "name": "Alice"}},
		&model.NodeEntity{Label: "Person", Attributes: map[string]any{"id": int64(1), "name": "Alicia"}},
		&model.NodeEntity{Label: "Person", Attributes: map[string]any{"id": int64(2), "name": "Bob"}},
		&model.RelationEntity{
			Type:  "KNOWS",
			Start: &model.NodeEntity{Label: "Person", Attributes: map[string]any{"id": int64(1)}},
			End:   &model.NodeEntity{Label: "Person", Attributes: map[string]any{"id": int64(2)}},
		},
	}

	batch, err := New("id").Compile(entities, identity.NewIndex().Stage())
	require.NoError(t, err)

	require.Len(t, batch.Nodes, 2)
	assert.Equal(t, "id", batch.Nodes[0].KeyName)
	assert.NotContains(t, batch.Nodes[0].Properties, "sha1")
	assert.Equal(t, int64(1), batch.Nodes[0].Properties["id"])

	rel := batch.Relations[0]
	assert.Equal(t, "id", rel.Start.KeyName)
	assert.Equal(t, int64(1), rel.Start.KeyValue)
	assert.Equal(t, int64(2), rel.End.KeyValue)
	assert.Equal(t, batch.Nodes[1].LocalID, rel.End.LocalID)
}

func TestCompile_SkipsUnknownShapes(t *testing.T) {
	entities := []model.Entity{
		&model.UnknownEntity{Raw: map[string]any{"name": "orphan"}},
		person("Alice"),
	}

	batch, err := New("id").Compile(entities, identity.NewIndex().Stage())
	require.NoError(t, err)
	assert.Len(t, batch.Nodes, 1)
	assert.Equal(t, 1, batch.Stats.Skipped)
	assert.Equal(t, 2, batch.Stats.Entities)
}

func TestCompile_MalformedAbortsWholeBatch(t *testing.T) {
	tests := []struct {
		name   string
		entity model.Entity
	}{
		{"empty label", &model.NodeEntity{Attributes: map[string]any{"name": "x"}}},
		{"nil attribute", &model.NodeEntity{Label: "Person", Attributes: map[string]any{"name": nil}}},
		{"nested attribute", &model.NodeEntity{Label: "Person", Attributes: map[string]any{"tags": []any{"a"}}}},
		{"injected label", &model.NodeEntity{Label: "Person) DETACH DELETE (n", Attributes: map[string]any{}}},
		{"missing endpoint", &model.RelationEntity{Type: "KNOWS", Start: person("Alice")}},
		{"bad relation type", &model.RelationEntity{Type: "", Start: person("Alice"), End: person("Bob")}},
		{"empty attribute name", &model.NodeEntity{Label: "Person", Attributes: map[string]any{"": "x"}}},
		{"label attribute", &model.NodeEntity{Label: "Person", Attributes: map[string]any{"label": "City"}}},
		{"fingerprint attribute", &model.NodeEntity{Label: "Person", Attributes: map[string]any{"sha1": "forged"}}},
		{"fingerprint attribute on endpoint", &model.RelationEntity{
			Type:  "KNOWS",
			Start: person("Alice"),
			End:   &model.NodeEntity{Label: "Person", Attributes: map[string]any{"sha1": "forged"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := identity.NewIndex()
			stage := x.Stage()
			batch, err := New("id").Compile([]model.Entity{person("Alice"), tt.entity}, stage)

			assert.Nil(t, batch)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrMalformedEntity))

			var cerr *CompileError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, 1, cerr.Position)
		})
	}
}

func TestCompile_NodesPrecedeRelations(t *testing.T) {
	entities := []model.Entity{
		&model.RelationEntity{Type: "KNOWS", Start: person("A"), End: person("B")},
		person("A"),
		&model.RelationEntity{Type: "KNOWS", Start: person("B"), End: person("A")},
		person("B"),
	}

	batch, err := New("id").Compile(entities, identity.NewIndex().Stage())
	require.NoError(t, err)

	// Relations live in their own list, transmitted after the node batch.
	require.Len(t, batch.Nodes, 2)
	require.Len(t, batch.Relations, 2)
	for _, n := range batch.Nodes {
		assert.NotZero(t, n.LocalID)
	}

	// A relation queued ahead of its nodes still gets their local ids.
	a, b := batch.Nodes[0].LocalID, batch.Nodes[1].LocalID
	assert.Equal(t, a, batch.Relations[0].Start.LocalID)
	assert.Equal(t, b, batch.Relations[0].End.LocalID)
	assert.Equal(t, b, batch.Relations[1].Start.LocalID)
	assert.Equal(t, a, batch.Relations[1].End.LocalID)
}

func TestCompile_PropertyNamesNeedNotBeIdentifiers(t *testing.T) {
	entities := []model.Entity{
		&model.NodeEntity{Label: "Person", Attributes: map[string]any{"name": "A", "e-mail": "a@x", "first name": "A"}},
	}

	batch, err := New("id").Compile(entities, identity.NewIndex().Stage())
	require.NoError(t, err)
	require.Len(t, batch.Nodes, 1)
	assert.Equal(t, "a@x", batch.Nodes[0].Properties["e-mail"])
	assert.Equal(t, "A", batch.Nodes[0].Properties["first name"])
}

func TestCompile_FingerprintPropertyAsIndexKey(t *testing.T) {
	entities := []model.Entity{
		&model.NodeEntity{Label: "Person", Attributes: map[string]any{"sha1": "abc", "name": "Alice"}},
	}

	batch, err := New("sha1").Compile(entities, identity.NewIndex().Stage())
	require.NoError(t, err)
	require.Len(t, batch.Nodes, 1)
	assert.Equal(t, "abc", batch.Nodes[0].KeyValue)
	assert.Equal(t, "abc", batch.Nodes[0].Properties["sha1"])
}
