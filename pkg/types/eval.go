package types

// RubricKind distinguishes the two judge scoring scales.
type RubricKind string

const (
	RubricBinary RubricKind = "binary" // 0 or 1
	RubricScaled RubricKind = "scaled" // 1..5
)

// Rubric is one of the seven independent judge criteria.
type Rubric struct {
	Key         string     `json:"key"` // e.g. "citation_accuracy"
	Description string     `json:"description"`
	Kind        RubricKind `json:"kind"`
}

// JudgeDecision is the raw output of a single judge call against a
// single rubric for a single response.
type JudgeDecision struct {
	RubricKey string  `json:"rubricKey"`
	Score     float64 `json:"score"` // 0/1 for binary, 1-5 for scaled
	Rationale string  `json:"rationale"`
}

// EvaluationResult is the validated aggregate of all seven judge
// decisions for one (query, response) pair. The only place that
// constructs a value of this type is internal/aggregate.Build, which
// enforces that exactly one decision exists per rubric and that scores
// fall within each rubric's valid range.
type EvaluationResult struct {
	QueryID     string                   `json:"queryID"`
	PromptVer   string                   `json:"promptVersion"`
	Scores      map[string]JudgeDecision `json:"scores"` // keyed by rubric key
	ComputedAt  int64                    `json:"computedAt"`

	valid bool // set only by aggregate.Build; prevents ad-hoc literal construction from being mistaken for a validated result
}

// Valid reports whether this result was constructed through the
// validating aggregate constructor.
func (r EvaluationResult) Valid() bool { return r.valid }

// MarkValid is used only by internal/aggregate to seal a result after
// validation. It is exported so the aggregate package (which cannot
// reach the unexported field across packages) can set it via the
// Sealed constructor pattern; callers outside internal/aggregate
// should never invoke it directly.
func MarkValid(r EvaluationResult) EvaluationResult {
	r.valid = true
	return r
}

// Query is one fixed entry in the evaluation query set.
type Query struct {
	ID       string   `json:"id"`
	Prompt   string   `json:"prompt"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// ComparisonDecision is the outcome of the statistical comparator for
// one rubric across a baseline and candidate run.
type ComparisonDecision string

const (
	DecisionAdopt       ComparisonDecision = "ADOPT"
	DecisionReject      ComparisonDecision = "REJECT"
	DecisionInconclusive ComparisonDecision = "INCONCLUSIVE"
)

// RubricComparison is the paired statistical comparison of one rubric
// between a baseline and candidate evaluation run.
type RubricComparison struct {
	RubricKey      string  `json:"rubricKey"`
	N              int     `json:"n"`
	MeanDifference float64 `json:"meanDifference"`
	CohensD        float64 `json:"cohensD"`
	PValue         float64 `json:"pValue"`
	Significant    bool    `json:"significant"` // p < 0.05
	Improved       bool    `json:"improved"`    // significant and mean difference favors candidate
	Regressed      bool    `json:"regressed"`   // significant and mean difference favors baseline
}

// ComparisonReport is the final output of `tandemai compare`.
type ComparisonReport struct {
	BaselineRun  string              `json:"baselineRun"`
	CandidateRun string              `json:"candidateRun"`
	Rubrics      []RubricComparison  `json:"rubrics"`
	Decision     ComparisonDecision  `json:"decision"`
}
