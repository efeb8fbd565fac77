package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CuriosityQuantified/tandemai/internal/compare"
	"github.com/CuriosityQuantified/tandemai/internal/eval"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

var compareCmd = &cobra.Command{
	Use:   "compare BASELINE_RESULTS CANDIDATE_RESULTS",
	Short: "Statistically compare two evaluation runs",
	Long: `Compare two completed evaluation runs (as written by "tandemai eval"'s
--out file) rubric by rubric with a paired t-test, and report ADOPT,
REJECT, or INCONCLUSIVE.

Exit code reflects the decision: 4 for ADOPT, 5 for REJECT, 6 for
INCONCLUSIVE.`,
	Args:          cobra.ExactArgs(2),
	RunE:          runCompare,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func runCompare(cmd *cobra.Command, args []string) error {
	baselinePath, candidatePath := args[0], args[1]

	baseline, err := eval.LoadResults(baselinePath)
	if err != nil {
		return exitErrorf(2, "load baseline results: %w", err)
	}
	candidate, err := eval.LoadResults(candidatePath)
	if err != nil {
		return exitErrorf(2, "load candidate results: %w", err)
	}

	report, err := compare.Build(baselinePath, candidatePath, baseline, candidate)
	if err != nil {
		return exitErrorf(2, "compare: %w", err)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return exitErrorf(2, "marshal report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	switch report.Decision {
	case types.DecisionAdopt:
		return &ExitError{Code: 4, Err: fmt.Errorf("decision: ADOPT")}
	case types.DecisionReject:
		return &ExitError{Code: 5, Err: fmt.Errorf("decision: REJECT")}
	default:
		return &ExitError{Code: 6, Err: fmt.Errorf("decision: INCONCLUSIVE")}
	}
}
