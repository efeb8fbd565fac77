// Package eval implements the evaluation harness (C8): it runs a fixed
// query set against a prompt-version-pinned orchestrator, fans each
// response out to the judge panel, aggregates the result, and caches
// everything on disk so a crashed or partial run only redoes the
// queries it hadn't finished.
package eval

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// querySetFile is the on-disk shape of a query set YAML file.
type querySetFile struct {
	Queries []struct {
		ID       string   `yaml:"id"`
		Prompt   string   `yaml:"prompt"`
		Category string   `yaml:"category"`
		Tags     []string `yaml:"tags"`
	} `yaml:"queries"`
}

// Categories is the fixed set of query categories spec.md requires the
// query set to span.
var Categories = []string{"simple", "multi_aspect", "time_constrained", "comprehensive"}

// LoadQuerySet reads and validates a query set YAML file. Every query
// must carry a non-empty ID, prompt, and a category drawn from
// Categories; IDs must be unique.
func LoadQuerySet(path string) ([]types.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eval: read query set: %w", err)
	}

	var file querySetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("eval: parse query set: %w", err)
	}

	validCategory := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		validCategory[c] = true
	}

	seen := make(map[string]bool, len(file.Queries))
	queries := make([]types.Query, 0, len(file.Queries))
	for i, q := range file.Queries {
		if q.ID == "" {
			return nil, fmt.Errorf("eval: query %d: missing id", i)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("eval: duplicate query id %q", q.ID)
		}
		seen[q.ID] = true
		if q.Prompt == "" {
			return nil, fmt.Errorf("eval: query %q: missing prompt", q.ID)
		}
		if !validCategory[q.Category] {
			return nil, fmt.Errorf("eval: query %q: category %q is not one of %v", q.ID, q.Category, Categories)
		}
		queries = append(queries, types.Query{
			ID:       q.ID,
			Prompt:   q.Prompt,
			Category: q.Category,
			Tags:     q.Tags,
		})
	}
	return queries, nil
}
