package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/scriptotek/slipsomat/internal/config"
	"github.com/scriptotek/slipsomat/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// Conflict modes for --conflict.
const (
	conflictAsk    = "ask"
	conflictReject = "reject"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	conflict   string
	yes        bool

	// stop releases the interrupt handler of a one-shot command.
	stop context.CancelFunc
}

// NewRootCmd creates the top-level `slipsomat` command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "slipsomat",
		Short: "Slipsomat keeps Alma letter templates in sync with a local working copy",
		Long: `slipsomat pulls notification letter templates (XSL) from the Alma staff
interface into local files, tracks what was last synchronized in status.json,
and pushes local edits back, asking before it overwrites changes it has not seen.

Run without a command to start the interactive shell.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.HasParent() {
				// The shell handles Ctrl-C per command instead.
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				cmd.SetContext(ctx)
				opts.stop = stop
			}
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.stop != nil {
				opts.stop()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultFile, "Path to the config file")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")
	flags.StringVar(&opts.conflict, "conflict", "", "Conflict handling: ask or reject (default ask on a terminal, reject otherwise)")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Push the detected set of modified letters without asking")

	root.AddCommand(newPullCmd(opts))
	root.AddCommand(newDefaultsCmd(opts))
	root.AddCommand(newPushCmd(opts))
	root.AddCommand(newTestCmd(opts))
	root.AddCommand(newStatusCmd(opts))

	return root
}

// setup initializes logging and resolves flag defaults.
func (o *rootOptions) setup() error {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}
	jsonFormat, err := logging.ParseFormat(o.logFormat)
	if err != nil {
		return err
	}
	logging.Init(os.Stderr, level, jsonFormat)

	switch o.conflict {
	case "":
		o.conflict = conflictReject
		if term.IsTerminal(int(os.Stdin.Fd())) {
			o.conflict = conflictAsk
		}
	case conflictAsk, conflictReject:
	default:
		return fmt.Errorf("invalid --conflict value %q (want ask or reject)", o.conflict)
	}
	return nil
}

// Execute runs the root command.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
