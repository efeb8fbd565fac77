package eval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/CuriosityQuantified/tandemai/internal/agent"
	"github.com/CuriosityQuantified/tandemai/internal/aggregate"
	"github.com/CuriosityQuantified/tandemai/internal/judge"
	"github.com/CuriosityQuantified/tandemai/internal/logging"
	"github.com/CuriosityQuantified/tandemai/internal/orchestrator"
	"github.com/CuriosityQuantified/tandemai/internal/provider"
	"github.com/CuriosityQuantified/tandemai/internal/storage"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// defaultConcurrency is used when Config.Concurrency is unset, matching
// spec.md §4.8's "~4 workers" default.
const defaultConcurrency = 4

// Config configures a single evaluation run.
type Config struct {
	// PromptVersion pins every query's orchestrator run to one
	// supervisor prompt, and namespaces the result cache.
	PromptVersion string
	// PromptOverride is the supervisor prompt text for PromptVersion. If
	// empty, the orchestrator's built-in default prompt is used.
	PromptOverride string

	WorkDir     string
	JudgeModel  string // "provider/model"
	Concurrency int
	NoCache     bool
}

// Result pairs a query with the outcome of evaluating it, so a caller
// can report which queries failed without losing the ones that
// succeeded.
type Result struct {
	Query            types.Query
	EvaluationResult types.EvaluationResult
	Err              error
	Cached           bool
}

// Run evaluates every query in queries under cfg, using store for both
// the orchestrator's session state and the result cache. Results are
// returned sorted by query ID regardless of completion order, per
// spec.md §4.8.
func Run(ctx context.Context, cfg Config, store *storage.Storage, queries []types.Query) ([]Result, error) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	providerID, modelID, ok := strings.Cut(cfg.JudgeModel, "/")
	if !ok {
		return nil, fmt.Errorf("eval: judge model %q must be \"provider/model\"", cfg.JudgeModel)
	}

	baseConfig := &types.Config{
		Agent: map[string]types.AgentConfig{},
	}
	if cfg.PromptOverride != "" {
		baseConfig.Agent[agent.RoleSupervisor] = types.AgentConfig{Prompt: cfg.PromptOverride}
	}

	results := make([]Result, len(queries))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, q := range queries {
		i, q := i, q
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			res := Result{Query: q}
			evalResult, cached, err := runOne(ctx, cfg, baseConfig, store, q, providerID, modelID)
			res.EvaluationResult = evalResult
			res.Cached = cached
			res.Err = err
			if err != nil {
				logging.Debug().Str("query_id", q.ID).Err(err).Msg("eval: query failed")
			}
			results[i] = res
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Query.ID < results[j].Query.ID })
	return results, nil
}

// runOne runs (or loads from cache) a single query's evaluation.
func runOne(ctx context.Context, cfg Config, baseConfig *types.Config, store *storage.Storage, q types.Query, judgeProviderID, judgeModelID string) (types.EvaluationResult, bool, error) {
	path := cachePath(cfg.PromptVersion, q.ID)
	if !cfg.NoCache && store.Exists(ctx, path) {
		var cached types.EvaluationResult
		if err := store.Get(ctx, path, &cached); err == nil {
			return types.MarkValid(cached), true, nil
		}
	}

	proc, err := orchestrator.New(ctx, baseConfig, cfg.WorkDir, store)
	if err != nil {
		return types.EvaluationResult{}, false, fmt.Errorf("eval: init orchestrator: %w", err)
	}

	sess, err := proc.Sessions().Create(ctx, cfg.WorkDir, fmt.Sprintf("eval: %s", q.ID), "")
	if err != nil {
		return types.EvaluationResult{}, false, fmt.Errorf("eval: create session: %w", err)
	}

	reply, err := proc.Process(ctx, sess, q.Prompt)
	if err != nil {
		return types.EvaluationResult{}, false, fmt.Errorf("eval: run query %s: %w", q.ID, err)
	}

	responseText, err := replyText(ctx, proc, reply)
	if err != nil {
		return types.EvaluationResult{}, false, fmt.Errorf("eval: extract response: %w", err)
	}

	judgeProvider, err := proc.Providers().Get(judgeProviderID)
	if err != nil {
		return types.EvaluationResult{}, false, fmt.Errorf("eval: judge provider: %w", err)
	}

	decisions, err := runJudgePanel(ctx, judgeProvider, judgeModelID, q.Prompt, responseText)
	if err != nil {
		return types.EvaluationResult{}, false, fmt.Errorf("eval: judge panel: %w", err)
	}

	result, err := aggregate.Build(q.ID, cfg.PromptVersion, decisions, aggregate.Now())
	if err != nil {
		return types.EvaluationResult{}, false, fmt.Errorf("eval: aggregate: %w", err)
	}

	if err := store.Put(ctx, path, result); err != nil {
		return types.EvaluationResult{}, false, fmt.Errorf("eval: cache result: %w", err)
	}
	return result, false, nil
}

// runJudgePanel fans a query/response pair out to all seven judges
// concurrently; every judge is blind to every other judge's output.
func runJudgePanel(ctx context.Context, prov provider.Provider, model, query, response string) (map[string]types.JudgeDecision, error) {
	type outcome struct {
		key      string
		decision types.JudgeDecision
		err      error
	}

	outcomes := make(chan outcome, len(judge.Rubrics))
	for _, rubric := range judge.Rubrics {
		rubric := rubric
		go func() {
			decision, err := judge.Run(ctx, prov, model, rubric, query, response)
			outcomes <- outcome{key: rubric.Key, decision: decision, err: err}
		}()
	}

	decisions := make(map[string]types.JudgeDecision, len(judge.Rubrics))
	var firstErr error
	for range judge.Rubrics {
		o := <-outcomes
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		decisions[o.key] = o.decision
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return decisions, nil
}

// replyText extracts the text content of a terminal message's parts.
func replyText(ctx context.Context, proc *orchestrator.Processor, msg *types.Message) (string, error) {
	parts, err := proc.Sessions().GetParts(ctx, msg.ID)
	if err != nil {
		return "", fmt.Errorf("eval: load reply parts: %w", err)
	}
	var b strings.Builder
	for _, part := range parts {
		if tp, ok := part.(*types.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String(), nil
}

// cachePath is the storage key for a cached evaluation result, keyed by
// (prompt_version, query_id) per spec.md §4.8.
func cachePath(promptVersion, queryID string) []string {
	return []string{"eval", promptVersion, queryID}
}

// LoadPromptOverride reads the supervisor prompt override for version
// from promptDir/<version>.md. An empty promptDir or a missing file
// means "use the built-in default prompt".
func LoadPromptOverride(promptDir, version string) (string, error) {
	if promptDir == "" {
		return "", nil
	}
	data, err := os.ReadFile(filepath.Join(promptDir, version+".md"))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("eval: read prompt override: %w", err)
	}
	return string(data), nil
}
