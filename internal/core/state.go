package core

// State is the flush controller's position in a flush cycle.
type State int

const (
	StateIdle State = iota
	StateCompiling
	StateWritingNodes
	StateWritingRelations
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCompiling:
		return "compiling"
	case StateWritingNodes:
		return "writing_nodes"
	case StateWritingRelations:
		return "writing_relations"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Phase names the part of a flush cycle an error came from.
type Phase string

const (
	PhaseCompile   Phase = "compile"
	PhaseNodes     Phase = "nodes"
	PhaseRelations Phase = "relations"
)
