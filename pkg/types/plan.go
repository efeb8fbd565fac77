package types

// Plan is an ordered list of research steps a worker maintains across
// its reasoning loop. Exactly one step is "in_progress" at a time;
// steps complete or get skipped in order, never go backward.
type Plan struct {
	SessionID string     `json:"sessionID"`
	Steps     []PlanStep `json:"steps"`
	UpdatedAt int64      `json:"updatedAt"`
}

// PlanStepStatus is the lifecycle state of one plan step.
type PlanStepStatus string

const (
	PlanStepPending    PlanStepStatus = "pending"
	PlanStepInProgress PlanStepStatus = "in_progress"
	PlanStepCompleted  PlanStepStatus = "completed"
	PlanStepSkipped    PlanStepStatus = "skipped"
)

// PlanStep is a single unit of work within a Plan.
type PlanStep struct {
	Index      int            `json:"index"`
	Content    string         `json:"content"`
	Status     PlanStepStatus `json:"status"`
	ActionHint string         `json:"actionHint,omitempty"` // which tool/worker this step expects to use
	ResultText string         `json:"resultText,omitempty"` // set when completed or skipped
}

// AllTerminal reports whether every step has left pending/in_progress.
func (p *Plan) AllTerminal() bool {
	for _, s := range p.Steps {
		if s.Status == PlanStepPending || s.Status == PlanStepInProgress {
			return false
		}
	}
	return true
}

// InProgressCount returns how many steps are currently in_progress.
func (p *Plan) InProgressCount() int {
	n := 0
	for _, s := range p.Steps {
		if s.Status == PlanStepInProgress {
			n++
		}
	}
	return n
}
