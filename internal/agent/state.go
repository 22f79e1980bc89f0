package agent

import "github.com/duckchat/duckchat/internal/schema"

const (
	// maxRepairAttempts bounds Repairer invocations per run.
	maxRepairAttempts = 2
	// maxRowLimit caps the LIMIT clause; queries without one get it appended.
	maxRowLimit = 1000
	// maxSampleRows caps how many result rows the answer prompt may carry.
	maxSampleRows = 50
)

// WorkflowState is the single mutable record threaded through one run.
// The orchestrator dispatches one node at a time, so exactly one writer
// touches it at any moment; runs never share a state.
type WorkflowState struct {
	RunID    string
	Question string
	Schema   schema.Snapshot

	// Last candidate proposed by the generator or repairer.
	CandidateSQL         string
	CandidateExplanation string
	CandidateConfidence  float64

	// Set only when the validator accepts CandidateSQL; cleared at the
	// start of every validation pass. Never non-empty while LastError is set.
	ValidatedSQL string

	LastError   *WorkflowError
	RepairCount int

	ResultColumns []string
	ResultRows    []map[string]any

	FinalAnswer string
}

// node enumerates the orchestrator's states. Transitions out of nodeValidating
// are the only conditional edges; see nextAfterValidation.
type node int

const (
	nodeInit node = iota
	nodeGenerating
	nodeValidating
	nodeRepairing
	nodeExecuting
	nodeAnswering
	nodeDone
)

func (n node) String() string {
	switch n {
	case nodeInit:
		return "init"
	case nodeGenerating:
		return "generating"
	case nodeValidating:
		return "validating"
	case nodeRepairing:
		return "repairing"
	case nodeExecuting:
		return "executing"
	case nodeAnswering:
		return "answering"
	case nodeDone:
		return "done"
	default:
		return "unknown"
	}
}

// nextAfterValidation is the routing policy evaluated after every validation
// pass, in priority order:
//  1. a validated query proceeds to execution
//  2. a repairable error within budget goes to repair
//  3. an error with the budget exhausted skips straight to answering
//  4. default: execution (unreachable under correct validator behavior)
func nextAfterValidation(state *WorkflowState) node {
	if state.ValidatedSQL != "" {
		return nodeExecuting
	}
	if state.LastError != nil && state.RepairCount < maxRepairAttempts {
		return nodeRepairing
	}
	if state.LastError != nil {
		return nodeAnswering
	}
	return nodeExecuting
}
