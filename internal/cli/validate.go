package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwhelan/sequences/internal/harness"
	"github.com/dwhelan/sequences/internal/sequence"
)

// ShapeResult describes one validated scenario.
type ShapeResult struct {
	Name  string `json:"name"`
	File  string `json:"file"`
	Valid bool   `json:"valid"`
	Steps int    `json:"steps"`
	Loops int    `json:"loops"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidationResult is the validate payload; Valid is false if any scenario failed.
type ValidationResult struct {
	Valid     bool          `json:"valid"`
	Scenarios []ShapeResult `json:"scenarios"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate scenarios without replaying calls",
		Long: `Load scenario files and declare their sequences without replaying calls.

Checks syntax, unknown fields, step and loop structure, occurrence
ranges, and that every call names a declared step. Faster than check for
authoring feedback.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	files, err := harness.FindScenarioFiles(paths, "")
	if err != nil {
		return outputValidateError(formatter, findErrorCode(err), err.Error())
	}
	if len(files) == 0 {
		return outputValidateError(formatter, ErrCodeNoFiles,
			fmt.Sprintf("no scenario files found in %s", strings.Join(paths, ", ")))
	}

	formatter.VerboseLog("Found %d scenario file(s)", len(files))

	result := ValidationResult{Valid: true, Scenarios: make([]ShapeResult, 0, len(files))}
	for _, file := range files {
		shape := validateScenario(opts, file, formatter)
		result.Scenarios = append(result.Scenarios, shape)
		if !shape.Valid {
			result.Valid = false
		}
	}

	if result.Valid {
		return outputValidateSuccess(formatter, result)
	}
	return outputValidationErrors(formatter, result)
}

// validateScenario loads one scenario and declares its shape.
func validateScenario(opts *RootOptions, file string, formatter *OutputFormatter) ShapeResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ShapeResult{File: file, Code: ErrCodeLoadFailed, Error: err.Error()}
	}

	runOpts := []harness.Option{harness.WithLogger(opts.Logger())}
	if m := opts.contextMode(); m != nil {
		runOpts = append(runOpts, harness.WithMode(m))
	}

	snap, err := harness.Shape(scenario, runOpts...)
	if err != nil {
		return ShapeResult{Name: scenario.Name, File: file, Code: ErrCodeInvalidShape, Error: err.Error()}
	}

	formatter.VerboseLog("%s:\n%s", scenario.Name, strings.TrimRight(snap.Render(), "\n"))

	steps, loops := countNodes(snap)
	return ShapeResult{Name: scenario.Name, File: file, Valid: true, Steps: steps, Loops: loops}
}

// countNodes counts steps and loops below the root.
func countNodes(n sequence.NodeSnapshot) (steps, loops int) {
	for _, child := range n.Children {
		if child.Kind == "step" {
			steps++
			continue
		}
		loops++
		s, l := countNodes(child)
		steps += s
		loops += l
	}
	return steps, loops
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	for _, s := range result.Scenarios {
		fmt.Fprintf(formatter.Writer, "%s %s (%d steps, %d loops)\n", formatter.Mark(true), s.Name, s.Steps, s.Loops)
	}
	fmt.Fprintf(formatter.Writer, "%s All scenarios valid\n", formatter.Mark(true))
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs per-scenario validation failures.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	var failed []ShapeResult
	for _, s := range result.Scenarios {
		if !s.Valid {
			failed = append(failed, s)
		}
	}

	if formatter.JSON() {
		if err := formatter.Respond(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    failed[0].Code,
				Message: failed[0].Error,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(failed)))
	}

	fmt.Fprintf(formatter.Writer, "%s Validation failed\n", formatter.Mark(false))
	fmt.Fprintln(formatter.Writer)

	for _, s := range failed {
		fmt.Fprintln(formatter.Writer, s.File)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", s.Code, s.Error)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(failed)))
}
