package eval

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// resultsFile is the on-disk shape a completed eval run is saved as,
// and what internal/compare's two run arguments read back.
type resultsFile struct {
	PromptVersion string                  `json:"promptVersion"`
	Results       []types.EvaluationResult `json:"results"`
}

// SaveResults writes every successfully evaluated query's result to
// path, in the order given (Run returns them sorted by query ID).
// Queries that failed are omitted; callers
// should report them separately (see Result.Err).
func SaveResults(path, promptVersion string, results []Result) error {
	file := resultsFile{PromptVersion: promptVersion}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		file.Results = append(file.Results, r.EvaluationResult)
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("eval: marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("eval: write results: %w", err)
	}
	return nil
}

// LoadResults reads back a results file written by SaveResults,
// re-sealing every EvaluationResult as valid since the unexported
// sealing field is never serialized.
func LoadResults(path string) ([]types.EvaluationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eval: read results: %w", err)
	}
	var file resultsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("eval: parse results: %w", err)
	}
	sealed := make([]types.EvaluationResult, len(file.Results))
	for i, r := range file.Results {
		sealed[i] = types.MarkValid(r)
	}
	return sealed, nil
}
