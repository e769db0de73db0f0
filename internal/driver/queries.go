package driver

import (
	"fmt"

	"github.com/agenthands/neobatch/internal/core/model"
)

const (
	CreateNodeQuery = `
		CREATE (n)
		SET n = $props
		RETURN id(n) AS id
	`

	attachLabelQuery = `
		MATCH (n) WHERE id(n) = $id
		SET n:%s
	`

	createRelationQuery = `
		MATCH (a:%s {%s: $start}), (b:%s {%s: $end})
		WITH a, b
		CREATE (a)-[:%s]->(b)
		RETURN null
	`

	createIndexQuery = `CREATE INDEX ON :%s(%s)`
)

// Labels, relation types and keys cannot be parameters in Cypher, so they
// are formatted in. The compiler only lets identifiers through.

func AttachLabelQuery(label string) string {
	return fmt.Sprintf(attachLabelQuery, label)
}

func RelationQuery(rel model.RelationCommand) string {
	return fmt.Sprintf(createRelationQuery,
		rel.Start.Label, rel.Start.KeyName,
		rel.End.Label, rel.End.KeyName,
		rel.Type)
}

func RelationParams(rel model.RelationCommand) map[string]any {
	return map[string]any{
		"start": rel.Start.KeyValue,
		"end":   rel.End.KeyValue,
	}
}

func IndexQuery(spec model.IndexSpec) (string, error) {
	if !model.ValidIdentifier(spec.Label) || !model.ValidIdentifier(spec.Key) {
		return "", fmt.Errorf("invalid index spec %s(%s)", spec.Label, spec.Key)
	}
	return fmt.Sprintf(createIndexQuery, spec.Label, spec.Key), nil
}
