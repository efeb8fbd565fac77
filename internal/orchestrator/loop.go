package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/CuriosityQuantified/tandemai/internal/agent"
	"github.com/CuriosityQuantified/tandemai/internal/approval"
	"github.com/CuriosityQuantified/tandemai/internal/event"
	"github.com/CuriosityQuantified/tandemai/internal/logging"
	"github.com/CuriosityQuantified/tandemai/internal/provider"
	"github.com/CuriosityQuantified/tandemai/internal/router"
	"github.com/CuriosityQuantified/tandemai/internal/tool"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// ErrAborted is returned by runLoop/Process when a client-initiated
// Abort closed the run's abort channel.
var ErrAborted = errors.New("orchestrator: run aborted")

// maxStepsPerRun bounds one role's reasoning loop so a misbehaving model
// (or an unreachable completion gate) cannot spin forever.
const maxStepsPerRun = 25

// toolCallAcc accumulates one tool call's streamed fragments. Chunks are
// matched by their position in the chunk's ToolCalls slice, which every
// provider eino-ext wraps preserves across a single stream.
type toolCallAcc struct {
	id   string
	name string
	args []byte
}

// runLoop drives role's reasoning loop on sess to a terminal assistant
// reply: a message with no further tool calls that also satisfies the
// role's completion-gate invariant. It persists every message and part
// it produces and publishes the corresponding events.
func (p *Processor) runLoop(ctx context.Context, sess *types.Session, role string, abortCh <-chan struct{}) (*types.Message, error) {
	a, err := p.agents.Get(role)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	toolCtx := p.toolContext(sess, a, abortCh)
	roleTools := p.tools.ForRole(a.ToolEnabled)
	einoTools := toolInfosFor(roleTools)

	gate := newGateTracker(role)

	for step := 0; step < maxStepsPerRun; step++ {
		select {
		case <-abortCh:
			return nil, fmt.Errorf("%w: session %s", ErrAborted, sess.ID)
		default:
		}

		msg, parts, err := p.step(ctx, sess, a, einoTools)
		if err != nil {
			return nil, err
		}

		decision := router.Decision{Target: router.TargetTerminal, Reason: "no further tool calls"}
		if p.router != nil {
			decision = p.router.Route(msg, parts)
		}
		p.checkpointStep(ctx, sess, role, decision)

		toolParts := toolPartsOf(parts)
		if len(toolParts) == 0 {
			if reason := gate.violation(ctx, p, sess.ID); reason != "" {
				logging.Debug().Str("session", sess.ID).Str("role", role).Str("reason", reason).Msg("completion gate rejected reply, nudging")
				if err := p.appendNudge(ctx, sess, reason); err != nil {
					return nil, err
				}
				continue
			}
			return msg, nil
		}

		for _, tp := range toolParts {
			p.executeToolPart(ctx, toolCtx, sess, msg, tp)
			gate.observe(tp)

			if p.doomloop != nil && p.doomloop.Check(sess.ID, tp.ToolName, tp.Input) {
				return nil, fmt.Errorf("orchestrator: session %s stuck repeating %s", sess.ID, tp.ToolName)
			}
		}
	}

	return nil, fmt.Errorf("orchestrator: session %s exceeded %d steps without a terminal reply", sess.ID, maxStepsPerRun)
}

// step runs exactly one model call: build the conversation, stream the
// completion, accumulate it into a message and parts, persist and
// publish them, and return.
func (p *Processor) step(ctx context.Context, sess *types.Session, a *agent.Agent, tools []provider.ToolInfo) (*types.Message, []types.Part, error) {
	messages, err := p.sessions.GetMessages(ctx, sess.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: load messages: %w", err)
	}
	partsByMsg, err := p.sessions.PartsByMessage(ctx, messages)
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: load parts: %w", err)
	}
	promptMsgs, promptParts := p.promptMessages(ctx, sess, messages, partsByMsg)

	einoMessages := make([]*schema.Message, 0, len(promptMsgs)+1)
	einoMessages = append(einoMessages, &schema.Message{
		Role:    schema.System,
		Content: SystemPrompt(a, sess.Directory),
	})
	einoMessages = append(einoMessages, provider.ConvertToEinoMessages(promptMsgs, promptParts)...)

	modelRef, err := p.resolveModel(a)
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: resolve model: %w", err)
	}
	prov, err := p.providers.Get(modelRef.ProviderID)
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: %w", err)
	}

	maxTokens := 4096
	if model, err := p.providers.GetModel(modelRef.ProviderID, modelRef.ModelID); err == nil && model.MaxOutputTokens > 0 {
		maxTokens = model.MaxOutputTokens
	}

	req := &provider.CompletionRequest{
		Model:       modelRef.ModelID,
		Messages:    einoMessages,
		Tools:       provider.ConvertToEinoTools(tools),
		MaxTokens:   maxTokens,
		Temperature: a.Temperature,
	}

	var stream *provider.CompletionStream
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 2 * time.Minute
	err = backoff.Retry(func() error {
		var streamErr error
		stream, streamErr = prov.CreateCompletion(ctx, req)
		return streamErr
	}, backoff.WithContext(retry, ctx))
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: create completion: %w", err)
	}
	defer stream.Close()

	now := time.Now().UnixMilli()
	msg := &types.Message{
		ID:         generateID(),
		SessionID:  sess.ID,
		Role:       "assistant",
		Time:       types.MessageTime{Created: now},
		Mode:       a.Name,
		ModelID:    modelRef.ModelID,
		ProviderID: modelRef.ProviderID,
	}

	content, toolCalls, err := accumulateStream(ctx, sess.ID, msg.ID, a.Name, stream)
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: stream: %w", err)
	}

	var parts []types.Part
	if content != "" {
		parts = append(parts, &types.TextPart{
			ID:        generateID(),
			SessionID: sess.ID,
			MessageID: msg.ID,
			Type:      "text",
			Text:      content,
		})
	}
	for _, tc := range toolCalls {
		var input map[string]any
		_ = json.Unmarshal(tc.args, &input)
		parts = append(parts, &types.ToolPart{
			ID:         generateID(),
			SessionID:  sess.ID,
			MessageID:  msg.ID,
			Type:       "tool",
			ToolCallID: tc.id,
			ToolName:   tc.name,
			Input:      input,
			State:      "pending",
		})
	}

	if err := p.sessions.AddMessage(ctx, msg); err != nil {
		return nil, nil, fmt.Errorf("orchestrator: save message: %w", err)
	}
	for _, part := range parts {
		if err := p.sessions.AddPart(ctx, part); err != nil {
			return nil, nil, fmt.Errorf("orchestrator: save part: %w", err)
		}
	}
	event.Publish(event.Event{Type: event.MessageCreated, Data: event.MessageCreatedData{Info: msg}})

	return msg, parts, nil
}

// accumulateStream drains stream, publishing one LLMThinking event per
// text delta, and returns the concatenated content plus every tool call
// assembled from its streamed fragments.
func accumulateStream(ctx context.Context, sessionID, messageID, agentName string, stream *provider.CompletionStream) (string, []*toolCallAcc, error) {
	var content string
	acc := make(map[int]*toolCallAcc)
	var order []int

	for {
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		default:
		}

		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}

		if chunk.Content != "" {
			content += chunk.Content
			event.Publish(event.Event{
				Type: event.LLMThinking,
				Data: event.LLMThinkingData{SessionID: sessionID, MessageID: messageID, Agent: agentName, Delta: chunk.Content},
			})
		}

		for i, tc := range chunk.ToolCalls {
			entry, ok := acc[i]
			if !ok {
				entry = &toolCallAcc{}
				acc[i] = entry
				order = append(order, i)
			}
			if tc.ID != "" {
				entry.id = tc.ID
			}
			if tc.Function.Name != "" {
				entry.name = tc.Function.Name
			}
			entry.args = append(entry.args, []byte(tc.Function.Arguments)...)
		}
	}

	sort.Ints(order)
	calls := make([]*toolCallAcc, 0, len(order))
	for _, i := range order {
		c := acc[i]
		if c.id == "" {
			c.id = generateID()
		}
		if len(c.args) == 0 {
			c.args = []byte("{}")
		}
		calls = append(calls, c)
	}
	return content, calls, nil
}

func toolPartsOf(parts []types.Part) []*types.ToolPart {
	var out []*types.ToolPart
	for _, part := range parts {
		if tp, ok := part.(*types.ToolPart); ok {
			out = append(out, tp)
		}
	}
	return out
}

func toolInfosFor(tools []tool.Tool) []provider.ToolInfo {
	infos := make([]provider.ToolInfo, 0, len(tools))
	for _, t := range tools {
		infos = append(infos, provider.ToolInfo{
			Name:        t.ID(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return infos
}

// executeToolPart runs one tool call in place, mutating tp's State,
// Output, and Error fields and persisting/publishing the result. Tools
// are always invoked this way, directly against the registry, rather
// than through Eino's own InvokableRun, which builds an empty Context
// and would silently lose session, approval, and permission wiring.
func (p *Processor) executeToolPart(ctx context.Context, toolCtx *tool.Context, sess *types.Session, msg *types.Message, tp *types.ToolPart) {
	tp.State = "running"
	_ = p.sessions.AddPart(ctx, tp)
	event.Publish(event.Event{
		Type: event.ToolCall,
		Data: event.ToolCallData{SessionID: sess.ID, MessageID: msg.ID, CallID: tp.ToolCallID, Agent: msg.Mode, Tool: tp.ToolName, Input: tp.Input},
	})

	t, ok := p.tools.Get(tp.ToolName)
	if !ok {
		errMsg := fmt.Sprintf("unknown tool: %s", tp.ToolName)
		tp.State = "error"
		tp.Error = &errMsg
		_ = p.sessions.AddPart(ctx, tp)
		event.Publish(event.Event{
			Type: event.ToolResult,
			Data: event.ToolResultData{SessionID: sess.ID, MessageID: msg.ID, CallID: tp.ToolCallID, Tool: tp.ToolName, Output: errMsg, IsError: true},
		})
		return
	}

	input, _ := json.Marshal(tp.Input)
	result, err := t.Execute(ctx, input, toolCtx)

	if err != nil {
		errMsg := err.Error()
		tp.State = "error"
		tp.Error = &errMsg
		event.Publish(event.Event{
			Type: event.ToolResult,
			Data: event.ToolResultData{SessionID: sess.ID, MessageID: msg.ID, CallID: tp.ToolCallID, Tool: tp.ToolName, Output: errMsg, IsError: true},
		})
	} else {
		tp.State = "completed"
		tp.Output = &result.Output
		tp.Title = &result.Title
		tp.Metadata = result.Metadata
		event.Publish(event.Event{
			Type: event.ToolResult,
			Data: event.ToolResultData{SessionID: sess.ID, MessageID: msg.ID, CallID: tp.ToolCallID, Tool: tp.ToolName, Output: result.Output},
		})
	}
	_ = p.sessions.AddPart(ctx, tp)
}

// appendNudge inserts a system-role corrective message so the next call
// to step() sees it as conversation history, per §4.3: a completion-gate
// violation makes the loop continue, never return.
func (p *Processor) appendNudge(ctx context.Context, sess *types.Session, reason string) error {
	now := time.Now().UnixMilli()
	msg := &types.Message{
		ID:        generateID(),
		SessionID: sess.ID,
		Role:      "system",
		Time:      types.MessageTime{Created: now},
	}
	part := &types.TextPart{
		ID:        generateID(),
		SessionID: sess.ID,
		MessageID: msg.ID,
		Type:      "text",
		Text:      reason,
	}
	if err := p.sessions.AddMessage(ctx, msg); err != nil {
		return err
	}
	return p.sessions.AddPart(ctx, part)
}

// toolContext builds the per-call tool.Context for role on sess. When
// the session's chat request set auto_approve, the role's default
// write/edit policy is relaxed to Allow; approval.Gate still forces Ask
// for delete_file calls and paths outside the sandbox regardless.
func (p *Processor) toolContext(sess *types.Session, a *agent.Agent, abortCh <-chan struct{}) *tool.Context {
	writePerm, editPerm := a.GetPermission(agent.PermWrite), a.GetPermission(agent.PermEdit)
	if p.autoApprove(sess.ID) {
		writePerm, editPerm = approval.Allow, approval.Allow
	}
	return &tool.Context{
		SessionID:       sess.ID,
		Agent:           a.Name,
		WorkDir:         sess.Directory,
		SandboxRoot:     sess.Directory,
		AbortCh:         abortCh,
		Gate:            p.gate,
		WritePermission: writePerm,
		EditPermission:  editPerm,
		Citations:       p.citations,
	}
}

// resolveModel picks the provider/model for a, falling back to the
// registry default when the role carries no override.
func (p *Processor) resolveModel(a *agent.Agent) (agent.ModelRef, error) {
	if a.Model != nil {
		return *a.Model, nil
	}
	model, err := p.providers.DefaultModel()
	if err != nil {
		return agent.ModelRef{}, err
	}
	return agent.ModelRef{ProviderID: model.ProviderID, ModelID: model.ID}, nil
}
