package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CuriosityQuantified/tandemai/internal/config"
	"github.com/CuriosityQuantified/tandemai/internal/eval"
	"github.com/CuriosityQuantified/tandemai/internal/logging"
	"github.com/CuriosityQuantified/tandemai/internal/storage"
)

var (
	evalVersion    string
	evalQueries    string
	evalWorkers    int
	evalNoCache    bool
	evalJudge      string
	evalResultsOut string
	evalDir        string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run the evaluation harness against a fixed query set",
	Long: `Run every query in the query set through a prompt-version-pinned
orchestrator, fan each response out to the judge panel, and persist an
EvaluationResult per query. Re-running is idempotent: cached results for
(prompt version, query id) pairs are reused unless --no-cache is set.`,
	RunE:          runEval,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	evalCmd.Flags().StringVar(&evalVersion, "version", "", "Prompt version to evaluate (required)")
	evalCmd.Flags().StringVar(&evalQueries, "queries", "", "Path to the query set YAML file (required)")
	evalCmd.Flags().IntVar(&evalWorkers, "workers", 0, "Number of concurrent query runs (default 4)")
	evalCmd.Flags().BoolVar(&evalNoCache, "no-cache", false, "Force re-evaluation of every query, ignoring the cache")
	evalCmd.Flags().StringVar(&evalJudge, "judge-model", "", "Judge model as \"provider/model\" (defaults to config eval.judge_model)")
	evalCmd.Flags().StringVar(&evalResultsOut, "out", "", "Path to write the results file (defaults under eval.results_dir)")
	evalCmd.Flags().StringVar(&evalDir, "directory", "", "Working directory for the orchestrator")
	_ = evalCmd.MarkFlagRequired("version")
	_ = evalCmd.MarkFlagRequired("queries")
}

func runEval(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(evalDir)
	if err != nil {
		return exitErrorf(2, "resolve working directory: %w", err)
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return exitErrorf(2, "load config: %w", err)
	}

	judgeModel := evalJudge
	if judgeModel == "" && appConfig.Eval != nil {
		judgeModel = appConfig.Eval.JudgeModel
	}
	if judgeModel == "" {
		return exitErrorf(2, "no judge model configured: pass --judge-model or set eval.judge_model")
	}

	queries, err := eval.LoadQuerySet(evalQueries)
	if err != nil {
		return exitErrorf(2, "load query set: %w", err)
	}
	if len(queries) == 0 {
		return exitErrorf(2, "query set %q is empty", evalQueries)
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return exitErrorf(2, "ensure paths: %w", err)
	}
	store := storage.New(paths.StoragePath())

	var promptDir string
	if appConfig.Eval != nil {
		promptDir = appConfig.Eval.PromptDir
	}
	promptOverride, err := eval.LoadPromptOverride(promptDir, evalVersion)
	if err != nil {
		return exitErrorf(2, "load prompt override: %w", err)
	}

	runCfg := eval.Config{
		PromptVersion:  evalVersion,
		PromptOverride: promptOverride,
		WorkDir:        workDir,
		JudgeModel:     judgeModel,
		Concurrency:    evalWorkers,
		NoCache:        evalNoCache,
	}

	logging.Info().
		Str("version", evalVersion).
		Int("queries", len(queries)).
		Msg("Starting evaluation run")

	results, err := eval.Run(context.Background(), runCfg, store, queries)
	if err != nil {
		return exitErrorf(2, "eval: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logging.Error().Str("query_id", r.Query.ID).Err(r.Err).Msg("query evaluation failed")
		}
	}

	outPath := evalResultsOut
	if outPath == "" {
		var resultsDir string
		if appConfig.Eval != nil {
			resultsDir = appConfig.Eval.ResultsDir
		}
		if resultsDir == "" {
			resultsDir = paths.Data
		}
		outPath = filepath.Join(resultsDir, evalVersion+".json")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return exitErrorf(2, "create results directory: %w", err)
	}
	if err := eval.SaveResults(outPath, evalVersion, results); err != nil {
		return exitErrorf(2, "save results: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "evaluated %d/%d queries, %d failed; results written to %s\n",
		len(results)-failed, len(results), failed, outPath)

	if failed > 0 {
		return exitErrorf(3, "%d of %d queries failed evaluation", failed, len(results))
	}
	return nil
}
