// Package commands provides the CLI commands for the tandemai binary.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CuriosityQuantified/tandemai/internal/logging"
)

var (
	// Version information set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

var (
	printLogs bool
	logLevel  string
	logFile   bool
)

var rootCmd = &cobra.Command{
	Use:   "tandemai",
	Short: "TandemAI - hierarchical multi-agent research orchestration",
	Long: `TandemAI runs a supervisor/worker agent graph against research queries,
serves it over HTTP, and evaluates prompt changes against a fixed query
set with an independent judge panel.

Run 'tandemai serve' to start the headless API server, 'tandemai eval'
to run the evaluation harness, or 'tandemai compare' to compare two
evaluation runs.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.Config{
			Level:     logging.ParseLevel(logLevel),
			Output:    os.Stderr,
			Pretty:    printLogs,
			LogToFile: logFile,
		}
		if !printLogs && !logFile {
			logCfg.Level = logging.FatalLevel
		}
		logging.Init(logCfg)
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Write logs to /tmp/opencode-YYYYMMDD-HHMMSS.log")

	rootCmd.SetVersionTemplate(fmt.Sprintf("tandemai %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(compareCmd)
}

// Execute runs the root command and returns its error, if any. Callers
// distinguish an *ExitError (a specific, spec-defined exit code) from
// any other error (cobra usage failures, flag parse errors), which
// should exit 2.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

// ExitError carries a specific process exit code for a command failure,
// per spec.md §4.12's exit code contract.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

func exitErrorf(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}
