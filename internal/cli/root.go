package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/sierrasoftworks/humane-errors-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dwhelan/sequences/internal/sequence"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Mode overrides each scenario's context mode when set.
	Mode string

	// ConfigFile is an optional YAML config file.
	ConfigFile string

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// EnvPrefix prefixes environment variables that set global flags,
// e.g. SEQCHECK_FORMAT=json.
const EnvPrefix = "SEQCHECK"

// NewRootCommand creates the root command for the seqcheck CLI.
//
// Global flags are resolved through viper with the precedence
// flag > environment (SEQCHECK_*) > config file > default.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "seqcheck",
		Short: "seqcheck - verify mocked call sequences",
		Long: `Verify ordered call sequences described as scenarios.

A scenario declares steps and loops with occurrence ranges, lists the
calls made, and states whether the sequence must verify. seqcheck replays
the calls against the sequence verifier and reports any difference.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(v, cmd.ErrOrStderr())
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Mode, "mode", "", "context mode override (goroutine|flow)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (YAML)")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Add subcommands
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// load resolves global options from viper and validates them.
func (o *RootOptions) load(v *viper.Viper, errW io.Writer) error {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return WrapExitError(ExitCommandError, "failed to read config",
				humane.Wrap(err, "config file could not be loaded",
					"check the --config path or unset "+EnvPrefix+"_CONFIG",
					"config files are YAML with keys format, mode and verbose"))
		}
	}

	o.Verbose = v.GetBool("verbose")
	o.Format = v.GetString("format")
	o.Mode = v.GetString("mode")
	o.ConfigFile = v.GetString("config")

	if !isValidFormat(o.Format) {
		return WrapExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats),
			humane.New("unsupported output format", "pass --format text or --format json"))
	}
	if o.Mode != "" {
		if _, err := sequence.ParseMode(o.Mode); err != nil {
			return WrapExitError(ExitCommandError, "invalid mode",
				humane.Wrap(err, "unsupported context mode",
					"use goroutine when mocks are called on the test goroutine",
					"use flow when calls hop goroutines carrying the test context"))
		}
	}

	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelInfo
	}
	o.logger = slog.New(slog.NewTextHandler(errW, &slog.HandlerOptions{Level: level}))
	return nil
}

// Logger returns the command logger. Commands built without the root
// command get a logger that discards everything.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

// contextMode returns the mode override, or nil if none is set.
func (o *RootOptions) contextMode() *sequence.ContextMode {
	if o.Mode == "" {
		return nil
	}
	m, err := sequence.ParseMode(o.Mode)
	if err != nil {
		return nil
	}
	return m
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
