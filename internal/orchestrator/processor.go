package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/CuriosityQuantified/tandemai/internal/agent"
	"github.com/CuriosityQuantified/tandemai/internal/approval"
	"github.com/CuriosityQuantified/tandemai/internal/citation"
	"github.com/CuriosityQuantified/tandemai/internal/citation/filestore"
	"github.com/CuriosityQuantified/tandemai/internal/event"
	"github.com/CuriosityQuantified/tandemai/internal/provider"
	"github.com/CuriosityQuantified/tandemai/internal/router"
	"github.com/CuriosityQuantified/tandemai/internal/storage"
	"github.com/CuriosityQuantified/tandemai/internal/tool"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// Processor runs the supervisor/worker graph (C3/C5/C6): it owns every
// dependency a reasoning-loop step needs and implements
// router.WorkerExecutor so the delegation tools it registers can
// recursively run a worker's own loop to completion.
type Processor struct {
	providers *provider.Registry
	tools     *tool.Registry
	agents    *agent.Registry
	router    *router.Router
	sessions  *SessionStore
	gate      *approval.Gate
	citations citation.Store
	doomloop  *approval.DoomLoopDetector

	mu           sync.Mutex
	abortChs     map[string]chan struct{}
	autoApproves map[string]bool
}

// New builds a fully wired Processor: the tool registry, the agent
// registry (with config overrides applied), one delegate_to_<role> tool
// per worker wired back to the Processor itself, and the router that
// validates the tool-isolation invariant across all of it.
func New(ctx context.Context, cfg *types.Config, workDir string, store *storage.Storage) (*Processor, error) {
	providers, err := provider.InitializeProviders(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: init providers: %w", err)
	}

	agents, err := agent.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: init agent registry: %w", err)
	}
	if cfg.Agent != nil {
		if err := agents.LoadFromConfig(cfg.Agent); err != nil {
			return nil, fmt.Errorf("orchestrator: apply agent config: %w", err)
		}
	}

	sandboxRoot := cfg.SandboxRoot
	if sandboxRoot == "" {
		sandboxRoot = workDir
	}

	p := &Processor{
		providers:    providers,
		tools:        tool.DefaultRegistry(workDir, store, nil),
		agents:       agents,
		sessions:     NewSessionStore(store),
		gate:         approval.NewGate(sandboxRoot),
		citations:    filestore.New(store),
		doomloop:     approval.NewDoomLoopDetector(),
		abortChs:     make(map[string]chan struct{}),
		autoApproves: make(map[string]bool),
	}

	delegateTools, err := router.NewDelegateTools(agents, p)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build delegate tools: %w", err)
	}
	for _, dt := range delegateTools {
		p.tools.Register(dt)
	}

	r, err := router.New(agents)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	p.router = r

	return p, nil
}

// Sessions exposes the session store for callers (e.g. the server) that
// need to list or read transcripts outside of a run.
func (p *Processor) Sessions() *SessionStore { return p.sessions }

// Gate exposes the approval gate so a server can route Respond calls to it.
func (p *Processor) Gate() *approval.Gate { return p.gate }

// Providers exposes the provider registry for callers (e.g. the
// evaluation harness) that need to make their own completion calls
// outside of a reasoning loop step, such as judge scoring.
func (p *Processor) Providers() *provider.Registry { return p.providers }

// Tools exposes the tool registry for callers (e.g. the server's
// plan-snapshot endpoint) that need to read tool-owned state without
// driving a reasoning loop.
func (p *Processor) Tools() *tool.Registry { return p.tools }

// LoadPlan returns the current research plan for sessionID, or nil if
// the worker assigned to it has not created one yet.
func (p *Processor) LoadPlan(ctx context.Context, sessionID string) (*types.Plan, error) {
	return tool.LoadPlan(ctx, p.tools.Storage(), sessionID)
}

// Process starts or continues a supervisor-rooted session: it appends
// userInput as a user message, runs the supervisor's reasoning loop to
// a terminal reply, and returns that reply.
func (p *Processor) Process(ctx context.Context, sess *types.Session, userInput string) (*types.Message, error) {
	return p.run(ctx, sess, agent.RoleSupervisor, userInput)
}

// run appends userInput as a user message on sess, runs role's
// reasoning loop to a terminal reply, and returns it. Once the user
// message is saved, a StreamComplete event is published whatever the
// loop's outcome, so any
// caller streaming this session's events always sees a terminal event —
// including a delegated child session driven by ExecuteWorker.
func (p *Processor) run(ctx context.Context, sess *types.Session, role, userInput string) (*types.Message, error) {
	abortCh := p.registerRun(sess.ID)
	defer p.clearRun(sess.ID)

	userMsg := &types.Message{
		ID:        generateID(),
		SessionID: sess.ID,
		Role:      "user",
		Time:      types.MessageTime{Created: nowMillis()},
	}
	userPart := &types.TextPart{
		ID:        generateID(),
		SessionID: sess.ID,
		MessageID: userMsg.ID,
		Type:      "text",
		Text:      userInput,
	}
	if err := p.sessions.AddMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("orchestrator: save user message: %w", err)
	}
	if err := p.sessions.AddPart(ctx, userPart); err != nil {
		return nil, fmt.Errorf("orchestrator: save user part: %w", err)
	}
	event.Publish(event.Event{Type: event.MessageCreated, Data: event.MessageCreatedData{Info: userMsg}})
	p.ensureTitle(ctx, sess, userInput)

	reply, err := p.runLoop(ctx, sess, role, abortCh)

	reason := "finished"
	switch {
	case errors.Is(err, ErrAborted):
		reason = "cancelled"
	case err != nil:
		reason = "error"
	}
	if err != nil {
		event.Publish(event.Event{
			Type: event.Error,
			Data: event.ErrorData{SessionID: sess.ID, Error: &types.MessageError{Type: "orchestrator", Message: err.Error()}},
		})
	}
	event.Publish(event.Event{
		Type: event.StreamComplete,
		Data: event.StreamCompleteData{SessionID: sess.ID, Reason: reason, Success: reason == "finished"},
	})

	if err != nil {
		return nil, err
	}
	return reply, nil
}

// SetAutoApprove records the chat request's auto_approve flag for
// sessionID so toolContext can relax its role's default write/edit
// policy to Allow for the run. The Gate's own sandbox and delete-class
// carve-outs (approval.Gate.autoApproveEligible) still apply
// underneath this, so a delete_file call never bypasses HITL
// regardless of this setting.
func (p *Processor) SetAutoApprove(sessionID string, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if enabled {
		p.autoApproves[sessionID] = true
	} else {
		delete(p.autoApproves, sessionID)
	}
}

func (p *Processor) autoApprove(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoApproves[sessionID]
}

// Abort cancels the run for sessionID, if one is active.
func (p *Processor) Abort(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.abortChs[sessionID]; ok {
		close(ch)
		delete(p.abortChs, sessionID)
	}
}

// IsProcessing reports whether sessionID currently has an active run.
func (p *Processor) IsProcessing(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.abortChs[sessionID]
	return ok
}

func (p *Processor) registerRun(sessionID string) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.abortChs[sessionID] = ch
	return ch
}

func (p *Processor) clearRun(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.abortChs, sessionID)
}
