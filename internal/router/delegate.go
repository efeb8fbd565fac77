package router

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/CuriosityQuantified/tandemai/internal/agent"
	"github.com/CuriosityQuantified/tandemai/internal/event"
	"github.com/CuriosityQuantified/tandemai/internal/tool"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// DelegationInput is the required shape of every delegate_to_<role>
// call (§4.5). A missing success_criteria or a non-absolute input path
// is a runtime lint: the call is rejected and a warning event is
// published, rather than silently proceeding.
type DelegationInput struct {
	Task                   string   `json:"task"`
	AbsolutePathsForInputs []string `json:"absolute_paths_for_inputs,omitempty"`
	ExpectedOutputs        string   `json:"expected_outputs"`
	SuccessCriteria        string   `json:"success_criteria"`
}

func validateDelegationInput(in DelegationInput) []string {
	var warnings []string
	if strings.TrimSpace(in.Task) == "" {
		warnings = append(warnings, "delegation call is missing task")
	}
	if strings.TrimSpace(in.SuccessCriteria) == "" {
		warnings = append(warnings, "delegation call is missing success_criteria")
	}
	for _, p := range in.AbsolutePathsForInputs {
		if !filepath.IsAbs(p) {
			warnings = append(warnings, fmt.Sprintf("delegation input path %q is not absolute", p))
		}
	}
	return warnings
}

// WorkerResult is what a delegated worker run returns to the
// supervisor's tool call.
type WorkerResult struct {
	Text     string
	Metadata map[string]any
}

// WorkerExecutor runs a worker role's reasoning loop to completion for
// one delegated task and returns its terminal reply. Implemented by
// internal/orchestrator; defined here to avoid router importing the
// orchestrator package that in turn imports router.
type WorkerExecutor interface {
	ExecuteWorker(ctx context.Context, parentSessionID, role string, task DelegationInput) (*WorkerResult, error)
}

const delegationParamsSchema = `{
	"type": "object",
	"properties": {
		"task": {"type": "string", "description": "The task to delegate, in full detail"},
		"absolute_paths_for_inputs": {
			"type": "array",
			"items": {"type": "string"},
			"description": "Absolute paths to any files the worker needs as input"
		},
		"expected_outputs": {"type": "string", "description": "What the worker should produce"},
		"success_criteria": {"type": "string", "description": "How to judge whether the delegated task succeeded"}
	},
	"required": ["task", "expected_outputs", "success_criteria"]
}`

// DelegateTool implements one delegate_to_<role> tool bound to a
// single worker role and a WorkerExecutor that actually runs it.
type DelegateTool struct {
	role        string
	description string
	executor    WorkerExecutor
}

// NewDelegateTools builds one DelegateTool per non-supervisor role
// currently registered, so a mis-delegation is a schema-validation
// error (unknown tool name) rather than a runtime string-match miss.
func NewDelegateTools(registry *agent.Registry, executor WorkerExecutor) ([]tool.Tool, error) {
	var tools []tool.Tool
	for _, name := range registry.Names() {
		if name == agent.RoleSupervisor {
			continue
		}
		a, err := registry.Get(name)
		if err != nil {
			return nil, err
		}
		tools = append(tools, &DelegateTool{
			role:        name,
			description: fmt.Sprintf("Delegates a task to the %s worker. %s", name, a.Description),
			executor:    executor,
		})
	}
	return tools, nil
}

func (t *DelegateTool) ID() string          { return DelegateToolName(t.role) }
func (t *DelegateTool) Description() string { return t.description }

func (t *DelegateTool) Parameters() json.RawMessage {
	return json.RawMessage(delegationParamsSchema)
}

func (t *DelegateTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
	var in DelegationInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid delegation input: %w", err)
	}

	if warnings := validateDelegationInput(in); len(warnings) > 0 {
		for _, w := range warnings {
			event.Publish(event.Event{
				Type: event.Error,
				Data: event.ErrorData{
					SessionID: toolCtx.SessionID,
					Error:     &types.MessageError{Type: "delegation_lint", Message: fmt.Sprintf("%s: %s", t.ID(), w)},
				},
			})
		}
	}

	event.Publish(event.Event{
		Type: event.WorkerTransition,
		Data: event.WorkerTransitionData{
			SessionID: toolCtx.SessionID,
			From:      agent.RoleSupervisor,
			To:        t.role,
			Reason:    in.Task,
		},
	})

	result, err := t.executor.ExecuteWorker(ctx, toolCtx.SessionID, t.role, in)
	if err != nil {
		return nil, fmt.Errorf("delegation to %s failed: %w", t.role, err)
	}

	return &tool.Result{
		Title:    fmt.Sprintf("%s completed", t.role),
		Output:   result.Text,
		Metadata: result.Metadata,
	}, nil
}

func (t *DelegateTool) EinoTool() einotool.InvokableTool {
	return tool.NewBaseTool(t.ID(), t.Description(), t.Parameters(), t.Execute).EinoTool()
}
