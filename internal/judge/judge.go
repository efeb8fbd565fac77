// Package judge implements the seven independent rubric judges (C9):
// each is a single, temperature-0 LLM call with a narrow rubric and a
// structured-output contract, blind to every other judge's output.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/CuriosityQuantified/tandemai/internal/provider"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// Rubrics is the fixed set of seven judges, in the order spec.md lists
// them. Every evaluation run must produce exactly one JudgeDecision per
// entry here.
var Rubrics = []types.Rubric{
	{Key: "planning_quality", Description: "Was an appropriate research plan created?", Kind: types.RubricBinary},
	{Key: "execution_completeness", Description: "Were the plan's steps executed thoroughly?", Kind: types.RubricScaled},
	{Key: "source_quality", Description: "Are the sources credible and recent?", Kind: types.RubricScaled},
	{Key: "citation_accuracy", Description: "Are citations correct and attributable to real sources?", Kind: types.RubricBinary},
	{Key: "answer_completeness", Description: "Does the response fully address the query?", Kind: types.RubricScaled},
	{Key: "factual_accuracy", Description: "Is the information in the response factually accurate?", Kind: types.RubricBinary},
	{Key: "autonomy_score", Description: "Did the agent act autonomously, without needing user hand-holding?", Kind: types.RubricBinary},
}

// ByKey looks up a rubric definition by its key.
func ByKey(key string) (types.Rubric, bool) {
	for _, r := range Rubrics {
		if r.Key == key {
			return r, true
		}
	}
	return types.Rubric{}, false
}

// structuredOutput is the JSON shape every judge call is asked to
// produce; judges never see another judge's output, so this is the
// entire contract between prompt and response.
type structuredOutput struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Run executes a single rubric's judge against one query/response pair
// and returns its decision. temperature is always pinned to 0 per
// spec.md §4.9's determinism requirement.
func Run(ctx context.Context, prov provider.Provider, model string, rubric types.Rubric, query, response string) (types.JudgeDecision, error) {
	prompt := buildPrompt(rubric, query, response)

	var stream *provider.CompletionStream
	retry := backoff.NewExponentialBackOff()
	err := backoff.Retry(func() error {
		var streamErr error
		stream, streamErr = prov.CreateCompletion(ctx, &provider.CompletionRequest{
			Model: model,
			Messages: []*schema.Message{
				{Role: schema.System, Content: judgeSystemPrompt},
				{Role: schema.User, Content: prompt},
			},
			Temperature: 0,
			MaxTokens:   500,
		})
		return streamErr
	}, backoff.WithContext(retry, ctx))
	if err != nil {
		return types.JudgeDecision{}, fmt.Errorf("judge %s: create completion: %w", rubric.Key, err)
	}
	defer stream.Close()

	var content strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.JudgeDecision{}, fmt.Errorf("judge %s: stream: %w", rubric.Key, err)
		}
		content.WriteString(chunk.Content)
	}

	var out structuredOutput
	if err := json.Unmarshal([]byte(extractJSON(content.String())), &out); err != nil {
		return types.JudgeDecision{}, fmt.Errorf("judge %s: malformed structured output: %w", rubric.Key, err)
	}
	if strings.TrimSpace(out.Reasoning) == "" {
		return types.JudgeDecision{}, fmt.Errorf("judge %s: empty reasoning", rubric.Key)
	}

	return types.JudgeDecision{
		RubricKey: rubric.Key,
		Score:     out.Score,
		Rationale: out.Reasoning,
	}, nil
}

const judgeSystemPrompt = `You are an independent evaluator scoring a single research agent response
against exactly one rubric. You do not see any other evaluator's output or reasoning.
Respond with ONLY a JSON object of the form {"score": <number>, "reasoning": "<string>"}.
No markdown, no prose outside the JSON object.`

func buildPrompt(rubric types.Rubric, query, response string) string {
	var scale string
	switch rubric.Kind {
	case types.RubricBinary:
		scale = "Score must be exactly 0 or 1."
	case types.RubricScaled:
		scale = "Score must be an integer from 1 to 5."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Rubric: %s\n%s\n%s\n\n", rubric.Key, rubric.Description, scale)
	fmt.Fprintf(&b, "Query:\n%s\n\n", query)
	fmt.Fprintf(&b, "Response:\n%s\n", response)
	return b.String()
}

// extractJSON trims any wrapping prose/code fence a model adds despite
// being asked not to, returning the first top-level {...} block.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
