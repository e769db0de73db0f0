package model

// NodeCommand creates one node. Ref is the placeholder other commands in the
// same node batch use to point at the created node.
type NodeCommand struct {
	Ref        int            `json:"ref"`
	LocalID    int64          `json:"local_id"`
	Label      string         `json:"label"`
	KeyName    string         `json:"key_name"`
	KeyValue   any            `json:"key_value"`
	Properties map[string]any `json:"properties"`
}

// LabelCommand attaches a label to the node created by the command with Ref == Target.
type LabelCommand struct {
	Target int    `json:"target"`
	Label  string `json:"label"`
}

// Endpoint identifies a relation endpoint by label and unique key. LocalID is
// zero when this writer has never committed the endpoint itself.
type Endpoint struct {
	Label    string `json:"label"`
	KeyName  string `json:"key_name"`
	KeyValue any    `json:"key_value"`
	LocalID  int64  `json:"local_id"`
}

type RelationCommand struct {
	Type  string   `json:"type"`
	Start Endpoint `json:"start"`
	End   Endpoint `json:"end"`
}

// NodeBatch is the payload of the first write phase.
type NodeBatch struct {
	Nodes  []NodeCommand  `json:"nodes"`
	Labels []LabelCommand `json:"labels"`
}

func (b NodeBatch) Empty() bool {
	return len(b.Nodes) == 0 && len(b.Labels) == 0
}

type BatchStats struct {
	Entities   int `json:"entities"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// Batch is the output of one compile: all node work first, then relations.
type Batch struct {
	NodeBatch
	Relations []RelationCommand `json:"relations"`
	Stats     BatchStats        `json:"stats"`
}

// IndexSpec declares an index on Label(Key) in the store.
type IndexSpec struct {
	Label string `json:"label" toml:"label" yaml:"label"`
	Key   string `json:"key" toml:"key" yaml:"key"`
}
