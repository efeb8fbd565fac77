package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/CuriosityQuantified/tandemai/internal/router"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// ExecuteWorker implements router.WorkerExecutor: it runs role's
// reasoning loop to completion as a child session of parentSessionID
// and returns its terminal reply. This is what every delegate_to_<role>
// tool call ultimately invokes; the nested loop is a plain recursive
// call into run(), modeling the "worker_k -> supervisor" graph
// transition as a synchronous return rather than a separate scheduler.
func (p *Processor) ExecuteWorker(ctx context.Context, parentSessionID, role string, task router.DelegationInput) (*router.WorkerResult, error) {
	parent, err := p.sessions.Get(ctx, parentSessionID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load parent session %s: %w", parentSessionID, err)
	}

	child, err := p.sessions.Create(ctx, parent.Directory, fmt.Sprintf("%s: %s", role, task.Task), parentSessionID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create child session: %w", err)
	}

	reply, err := p.run(ctx, child, role, delegationPrompt(task))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %s run failed: %w", role, err)
	}

	text, err := p.replyText(ctx, reply)
	if err != nil {
		return nil, err
	}

	return &router.WorkerResult{
		Text: text,
		Metadata: map[string]any{
			"sessionID": child.ID,
			"role":      role,
		},
	}, nil
}

// delegationPrompt renders a DelegationInput as the child session's
// opening user message.
func delegationPrompt(task router.DelegationInput) string {
	var b strings.Builder
	b.WriteString(task.Task)
	if len(task.AbsolutePathsForInputs) > 0 {
		b.WriteString("\n\nInput files:\n")
		for _, p := range task.AbsolutePathsForInputs {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	if task.ExpectedOutputs != "" {
		fmt.Fprintf(&b, "\nExpected output: %s\n", task.ExpectedOutputs)
	}
	if task.SuccessCriteria != "" {
		fmt.Fprintf(&b, "\nSuccess criteria: %s\n", task.SuccessCriteria)
	}
	return b.String()
}

// replyText extracts the text content of a terminal message's parts.
func (p *Processor) replyText(ctx context.Context, msg *types.Message) (string, error) {
	parts, err := p.sessions.GetParts(ctx, msg.ID)
	if err != nil {
		return "", fmt.Errorf("orchestrator: load reply parts: %w", err)
	}
	var b strings.Builder
	for _, part := range parts {
		if tp, ok := part.(*types.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String(), nil
}
