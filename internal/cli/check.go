package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dwhelan/sequences/internal/harness"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	Watch  bool   // re-run on file changes
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name     string   `json:"name"`
	File     string   `json:"file"`
	Pass     bool     `json:"pass"`
	Verified bool     `json:"verified"`
	Errors   []string `json:"errors,omitempty"`
}

// CheckResult holds the overall check result.
type CheckResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <path>...",
		Short: "Replay scenarios against the sequence verifier",
		Long: `Replay scenario files against the sequence verifier.

Each path is a scenario file (.yaml, .yml, .cue) or a directory searched
recursively for them. A scenario passes when its outcome matches its
expect clause and, if golden/<name>.golden exists next to the scenario,
the rendered result matches it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  seqcheck check ./scenarios
  seqcheck check ./scenarios --filter "loop_*"
  seqcheck check ./scenarios --update
  seqcheck check ./scenarios --watch
  seqcheck check ./scenarios/retry.yaml --mode flow --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	bindCheckFlags(cmd.Flags(), opts)
	cmd.MarkFlagsMutuallyExclusive("watch", "update")
	return cmd
}

func bindCheckFlags(fs *pflag.FlagSet, opts *CheckOptions) {
	fs.BoolVar(&opts.Update, "update", false, "regenerate golden files")
	fs.StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	fs.BoolVar(&opts.Watch, "watch", false, "re-run when scenario or golden files change")
}

func runCheck(opts *CheckOptions, paths []string, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	err := checkOnce(opts, paths, formatter)
	if !opts.Watch || GetExitCode(err) == ExitCommandError {
		return err
	}

	formatter.Textf("\nWatching for changes (Ctrl+C to stop)...")
	return watchScenarios(cmd.Context(), paths, opts.Logger(), func() {
		formatter.Textf("")
		_ = checkOnce(opts, paths, formatter)
	})
}

// checkOnce runs every matching scenario once and reports the summary.
func checkOnce(opts *CheckOptions, paths []string, formatter *OutputFormatter) error {
	files, err := harness.FindScenarioFiles(paths, opts.Filter)
	if err != nil {
		_ = formatter.Error(findErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(files) == 0 {
		if formatter.JSON() {
			return formatter.Success(CheckResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	result := CheckResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}

	for _, file := range files {
		scenResult := checkScenario(opts, file, formatter)
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.JSON() {
		return outputCheckJSON(formatter, result)
	}
	return outputCheckText(formatter, result)
}

// checkScenario loads, runs, and golden-compares a single scenario.
func checkScenario(opts *CheckOptions, file string, formatter *OutputFormatter) ScenarioResult {
	logger := opts.Logger()

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		logger.Warn("scenario failed to load", "file", file, "error", err)
		return failScenario(formatter, filepath.Base(file), file, fmt.Sprintf("failed to load scenario: %v", err))
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if m := opts.contextMode(); m != nil {
		runOpts = append(runOpts, harness.WithMode(m))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return failScenario(formatter, scenario.Name, file, fmt.Sprintf("execution failed: %v", err))
	}

	formatter.VerboseLog("%s", strings.TrimRight(result.Render(), "\n"))

	scenResult := ScenarioResult{
		Name:     scenario.Name,
		File:     file,
		Pass:     result.Pass,
		Verified: result.Verified,
		Errors:   result.Mismatches,
	}

	goldenPath := goldenFilePath(file)
	rendered := []byte(result.Render())

	if opts.Update {
		if err := writeGoldenFile(goldenPath, rendered); err != nil {
			return failScenario(formatter, scenario.Name, file, fmt.Sprintf("failed to update golden file: %v", err))
		}
		formatter.Textf("%s %s (golden updated)", formatter.Mark(true), scenario.Name)
		scenResult.Pass = true
		scenResult.Errors = nil
		return scenResult
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case os.IsNotExist(err):
		// Without a golden file the expect clause alone decides.
	case err != nil:
		return failScenario(formatter, scenario.Name, file, fmt.Sprintf("golden comparison failed: %v", err))
	case !bytes.Equal(golden, rendered):
		scenResult.Pass = false
		scenResult.Errors = append(scenResult.Errors, "result does not match golden file (run with --update to regenerate)")
	}

	if scenResult.Pass {
		formatter.Textf("%s %s", formatter.Mark(true), scenario.Name)
		return scenResult
	}

	formatter.Textf("%s %s", formatter.Mark(false), scenario.Name)
	for _, e := range scenResult.Errors {
		formatter.Textf("  %s", e)
	}
	return scenResult
}

func failScenario(formatter *OutputFormatter, name, file, message string) ScenarioResult {
	formatter.Textf("%s %s", formatter.Mark(false), name)
	formatter.Textf("  %s", message)
	return ScenarioResult{
		Name:   name,
		File:   file,
		Pass:   false,
		Errors: []string{message},
	}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// writeGoldenFile writes rendered output as the golden file.
func writeGoldenFile(goldenPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// outputCheckJSON outputs the check result as JSON.
func outputCheckJSON(formatter *OutputFormatter, result CheckResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeCheckFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := formatter.Respond(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputCheckText outputs the check summary as text.
func outputCheckText(formatter *OutputFormatter, result CheckResult) error {
	w := formatter.Writer

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Check Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintf(w, "%s All scenarios passed\n", formatter.Mark(true))
	return nil
}

// findErrorCode maps a scenario discovery error to an error code.
func findErrorCode(err error) string {
	var notFound *harness.ScenarioNotFoundError
	if errors.As(err, &notFound) {
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}
