// Package aggregate implements the result aggregator (C10): the sole
// construction site for types.EvaluationResult, enforcing that every
// evaluation run carries exactly one decision per rubric with a
// correctly-ranged score and a non-empty rationale.
package aggregate

import (
	"fmt"
	"time"

	"github.com/CuriosityQuantified/tandemai/internal/judge"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// Build validates decisions against judge.Rubrics and returns a sealed
// EvaluationResult. Any validation failure is returned as an error and
// no EvaluationResult is produced — callers must never construct one by
// hand on a partial set, per spec.md §4.10.
func Build(queryID, promptVersion string, decisions map[string]types.JudgeDecision, now int64) (types.EvaluationResult, error) {
	scores := make(map[string]types.JudgeDecision, len(judge.Rubrics))

	for _, rubric := range judge.Rubrics {
		decision, ok := decisions[rubric.Key]
		if !ok {
			return types.EvaluationResult{}, fmt.Errorf("aggregate: missing judge decision for rubric %q", rubric.Key)
		}
		if decision.Rationale == "" {
			return types.EvaluationResult{}, fmt.Errorf("aggregate: rubric %q has empty reasoning", rubric.Key)
		}

		coerced, err := coerceScore(rubric, decision.Score)
		if err != nil {
			return types.EvaluationResult{}, fmt.Errorf("aggregate: rubric %q: %w", rubric.Key, err)
		}
		decision.Score = coerced
		decision.RubricKey = rubric.Key
		scores[rubric.Key] = decision
	}

	if len(decisions) != len(judge.Rubrics) {
		return types.EvaluationResult{}, fmt.Errorf("aggregate: expected exactly %d judge decisions, got %d", len(judge.Rubrics), len(decisions))
	}

	result := types.EvaluationResult{
		QueryID:    queryID,
		PromptVer:  promptVersion,
		Scores:     scores,
		ComputedAt: now,
	}
	return types.MarkValid(result), nil
}

// coerceScore enforces each rubric kind's valid range: binary rubrics
// must be exactly 0 or 1, scaled rubrics must be an integer in [1, 5].
func coerceScore(rubric types.Rubric, score float64) (float64, error) {
	switch rubric.Kind {
	case types.RubricBinary:
		if score == 0 || score == 1 {
			return score, nil
		}
		return 0, fmt.Errorf("binary score %v is not 0 or 1", score)
	case types.RubricScaled:
		if score != float64(int(score)) {
			return 0, fmt.Errorf("scaled score %v is not an integer", score)
		}
		if score < 1 || score > 5 {
			return 0, fmt.Errorf("scaled score %v is out of range [1,5]", score)
		}
		return score, nil
	default:
		return 0, fmt.Errorf("unknown rubric kind %q", rubric.Kind)
	}
}

// Now is the time source Build's caller should pass in, isolated here
// so aggregate itself never calls time.Now (keeping Build a pure
// function of its inputs, easy to test against fixed timestamps).
func Now() int64 { return time.Now().UnixMilli() }
