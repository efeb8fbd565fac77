package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/CuriosityQuantified/tandemai/internal/event"
	"github.com/CuriosityQuantified/tandemai/internal/storage"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// planPath is the storage key a session's plan is persisted under.
func planPath(sessionID string) []string {
	return []string{"plan", sessionID}
}

// LoadPlan returns the current plan for a session, or nil if none has
// been created yet. Exported so the orchestrator can check the
// completion-gate invariant without duplicating the storage key.
func LoadPlan(ctx context.Context, store *storage.Storage, sessionID string) (*types.Plan, error) {
	return loadPlan(ctx, store, sessionID)
}

func loadPlan(ctx context.Context, store *storage.Storage, sessionID string) (*types.Plan, error) {
	var plan types.Plan
	err := store.Get(ctx, planPath(sessionID), &plan)
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return &plan, nil
}

func savePlan(ctx context.Context, store *storage.Storage, plan *types.Plan) error {
	plan.UpdatedAt = time.Now().Unix()
	if err := store.Put(ctx, planPath(plan.SessionID), plan); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	event.Publish(event.Event{
		Type: event.PlanUpdate,
		Data: event.PlanUpdateData{SessionID: plan.SessionID, Plan: plan},
	})
	return nil
}

// validatePlanSteps enforces index contiguity (0..n-1, in order) and
// at most one in_progress step.
func validatePlanSteps(steps []types.PlanStep) error {
	inProgress := 0
	for i, s := range steps {
		if s.Index != i {
			return fmt.Errorf("index-out-of-range: step %d has index %d, expected contiguous 0-based indices", i, s.Index)
		}
		if s.Status == types.PlanStepInProgress {
			inProgress++
		}
	}
	if inProgress > 1 {
		return fmt.Errorf("plan invariant violated: %d steps marked in_progress, at most one allowed", inProgress)
	}
	return nil
}

// --- create_research_plan ---

const createPlanDescription = `Creates the ordered research plan for this session, replacing any
existing plan. Steps are indexed 0..n-1 in execution order; at most one
step may be in_progress at a time.`

// CreatePlanTool implements create_research_plan.
type CreatePlanTool struct {
	storage *storage.Storage
}

// NewCreatePlanTool creates the create_research_plan tool.
func NewCreatePlanTool(store *storage.Storage) *CreatePlanTool {
	return &CreatePlanTool{storage: store}
}

// CreatePlanInput is the input for create_research_plan.
type CreatePlanInput struct {
	Steps []types.PlanStep `json:"steps"`
}

func (t *CreatePlanTool) ID() string          { return "create_research_plan" }
func (t *CreatePlanTool) Description() string { return createPlanDescription }

func (t *CreatePlanTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"steps": {
				"type": "array",
				"description": "Ordered plan steps, index 0..n-1",
				"items": {
					"type": "object",
					"properties": {
						"index": {"type": "integer"},
						"content": {"type": "string"},
						"status": {"type": "string", "enum": ["pending", "in_progress", "completed", "skipped"]},
						"actionHint": {"type": "string"}
					},
					"required": ["index", "content", "status"]
				}
			}
		},
		"required": ["steps"]
	}`)
}

func (t *CreatePlanTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params CreatePlanInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if err := validatePlanSteps(params.Steps); err != nil {
		return nil, err
	}

	plan := &types.Plan{SessionID: toolCtx.SessionID, Steps: params.Steps}
	if err := savePlan(ctx, t.storage, plan); err != nil {
		return nil, err
	}

	out, _ := json.MarshalIndent(plan, "", "  ")
	return &Result{
		Title:    fmt.Sprintf("Created plan with %d step(s)", len(plan.Steps)),
		Output:   string(out),
		Metadata: map[string]any{"stepCount": len(plan.Steps)},
	}, nil
}

func (t *CreatePlanTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- read_current_plan ---

const readPlanDescription = `Returns the current plan snapshot for this session, including whether
every step has left pending/in_progress (allStepsCompleted).

A worker that plans must observe allStepsCompleted=true here before
emitting its terminal reply.`

// ReadPlanTool implements read_current_plan.
type ReadPlanTool struct {
	storage *storage.Storage
}

// NewReadPlanTool creates the read_current_plan tool.
func NewReadPlanTool(store *storage.Storage) *ReadPlanTool {
	return &ReadPlanTool{storage: store}
}

func (t *ReadPlanTool) ID() string          { return "read_current_plan" }
func (t *ReadPlanTool) Description() string { return readPlanDescription }

func (t *ReadPlanTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}, "required": []}`)
}

func (t *ReadPlanTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	plan, err := loadPlan(ctx, t.storage, toolCtx.SessionID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan-not-found: no plan exists for this session yet")
	}

	allCompleted := plan.AllTerminal()
	out, _ := json.MarshalIndent(struct {
		*types.Plan
		AllStepsCompleted bool `json:"allStepsCompleted"`
	}{plan, allCompleted}, "", "  ")

	return &Result{
		Title:  fmt.Sprintf("Plan: %d step(s)", len(plan.Steps)),
		Output: string(out),
		Metadata: map[string]any{
			"allStepsCompleted": allCompleted,
			"stepCount":         len(plan.Steps),
		},
	}, nil
}

func (t *ReadPlanTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- update_plan_progress ---

const updatePlanDescription = `Updates the status of a single plan step by index, enforcing that at
most one step is in_progress at a time.`

// UpdatePlanTool implements update_plan_progress.
type UpdatePlanTool struct {
	storage *storage.Storage
}

// NewUpdatePlanTool creates the update_plan_progress tool.
func NewUpdatePlanTool(store *storage.Storage) *UpdatePlanTool {
	return &UpdatePlanTool{storage: store}
}

// UpdatePlanInput is the input for update_plan_progress.
type UpdatePlanInput struct {
	Index      int                  `json:"index"`
	Status     types.PlanStepStatus `json:"status"`
	ResultText string               `json:"resultText,omitempty"`
}

func (t *UpdatePlanTool) ID() string          { return "update_plan_progress" }
func (t *UpdatePlanTool) Description() string { return updatePlanDescription }

func (t *UpdatePlanTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"index": {"type": "integer", "description": "Step index to update"},
			"status": {"type": "string", "enum": ["pending", "in_progress", "completed", "skipped"]},
			"resultText": {"type": "string", "description": "Set when completing or skipping a step"}
		},
		"required": ["index", "status"]
	}`)
}

func (t *UpdatePlanTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params UpdatePlanInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	plan, err := loadPlan(ctx, t.storage, toolCtx.SessionID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan-not-found: no plan exists for this session yet")
	}
	if params.Index < 0 || params.Index >= len(plan.Steps) {
		return nil, fmt.Errorf("index-out-of-range: step %d does not exist (plan has %d steps)", params.Index, len(plan.Steps))
	}

	updated := make([]types.PlanStep, len(plan.Steps))
	copy(updated, plan.Steps)
	updated[params.Index].Status = params.Status
	if params.ResultText != "" {
		updated[params.Index].ResultText = params.ResultText
	}
	if err := validatePlanSteps(updated); err != nil {
		return nil, err
	}
	plan.Steps = updated

	if err := savePlan(ctx, t.storage, plan); err != nil {
		return nil, err
	}

	out, _ := json.MarshalIndent(plan, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("Step %d -> %s", params.Index, params.Status),
		Output: string(out),
		Metadata: map[string]any{
			"index":  params.Index,
			"status": params.Status,
		},
	}, nil
}

func (t *UpdatePlanTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- edit_plan ---

const editPlanDescription = `Replaces the plan's steps outright to insert, remove, or re-order them.
The replacement list must already be indexed 0..n-1 in order; the tool
does not re-index it and rejects it otherwise. Use update_plan_progress
for routine status changes; use
this only when the plan itself must change shape.`

// EditPlanTool implements edit_plan.
type EditPlanTool struct {
	storage *storage.Storage
}

// NewEditPlanTool creates the edit_plan tool.
func NewEditPlanTool(store *storage.Storage) *EditPlanTool {
	return &EditPlanTool{storage: store}
}

// EditPlanInput is the input for edit_plan.
type EditPlanInput struct {
	Steps []types.PlanStep `json:"steps"`
}

func (t *EditPlanTool) ID() string          { return "edit_plan" }
func (t *EditPlanTool) Description() string { return editPlanDescription }

func (t *EditPlanTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"steps": {
				"type": "array",
				"description": "The full replacement step list, re-indexed 0..n-1",
				"items": {
					"type": "object",
					"properties": {
						"index": {"type": "integer"},
						"content": {"type": "string"},
						"status": {"type": "string", "enum": ["pending", "in_progress", "completed", "skipped"]},
						"actionHint": {"type": "string"},
						"resultText": {"type": "string"}
					},
					"required": ["index", "content", "status"]
				}
			}
		},
		"required": ["steps"]
	}`)
}

func (t *EditPlanTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params EditPlanInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	plan, err := loadPlan(ctx, t.storage, toolCtx.SessionID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan-not-found: no plan exists for this session yet")
	}
	if err := validatePlanSteps(params.Steps); err != nil {
		return nil, err
	}

	plan.Steps = params.Steps
	if err := savePlan(ctx, t.storage, plan); err != nil {
		return nil, err
	}

	out, _ := json.MarshalIndent(plan, "", "  ")
	return &Result{
		Title:    fmt.Sprintf("Plan edited: %d step(s)", len(plan.Steps)),
		Output:   string(out),
		Metadata: map[string]any{"stepCount": len(plan.Steps)},
	}, nil
}

func (t *EditPlanTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }
