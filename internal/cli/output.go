package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // every scenario passed
	ExitFailure      = 1 // a scenario failed or did not load
	ExitCommandError = 2 // bad paths, flags or config
)

// Error codes reported in CLIError.Code and in text output.
const (
	ErrCodeGeneric      = "E001"
	ErrCodeNoFiles      = "E003" // a directory held no scenario files
	ErrCodeLoadFailed   = "E004" // parse or validation error in a scenario
	ErrCodeNotFound     = "E005"
	ErrCodeCheckFailed  = "E201" // a scenario did not meet its expect clause
	ErrCodeInvalidShape = "E202" // steps and loops could not be declared
)

// ExitError carries the process exit code out of a command's RunE.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError whose cause is err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps a command error to the process exit code. Errors that
// carry no ExitError count as a failed check.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or as one JSON document.
// Diagnostics go to ErrWriter so that stdout stays parseable.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
	Color     bool
}

// NewOutputFormatter creates a formatter for a command, enabling color
// only when stdout is a terminal.
func NewOutputFormatter(opts *RootOptions, out, errOut io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   opts.Verbose,
		Color:     isTerminal(out),
	}
}

// isTerminal reports whether w is a terminal that accepts color.
func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// CLIResponse is the JSON envelope of every command. Status is "ok" or
// "error"; Data holds the check or validate result either way.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes why a command failed, with one of the ErrCode values.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON reports whether the formatter writes JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Respond writes a full response as indented JSON.
func (f *OutputFormatter) Respond(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// Success writes data as an "ok" response, or prints it in text mode.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return f.Respond(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes a command-level failure, such as a missing scenario path.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return f.Respond(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Textf writes a line of text output. It does nothing in JSON mode so that
// progress lines never corrupt the JSON document.
func (f *OutputFormatter) Textf(format string, args ...any) {
	if f.JSON() {
		return
	}
	fmt.Fprintf(f.Writer, format+"\n", args...)
}

// Mark returns the pass or fail symbol for text output.
func (f *OutputFormatter) Mark(pass bool) string {
	symbol, attr := "✓", color.FgGreen
	if !pass {
		symbol, attr = "✗", color.FgRed
	}
	if !f.Color {
		return symbol
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(symbol)
}

// VerboseLog writes a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer for formatters built without one.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Advice collects the remediation hints attached anywhere in err's chain.
func Advice(err error) []string {
	var advice []string
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if adv, ok := cur.(interface{ Advice() []string }); ok {
			advice = append(advice, adv.Advice()...)
		}
	}
	return advice
}
