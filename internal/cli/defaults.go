package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scriptotek/slipsomat/internal/localstore"
	"github.com/scriptotek/slipsomat/internal/reconcile"
	"github.com/scriptotek/slipsomat/internal/vcs"
)

func newDefaultsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Pull the default (uncustomized) version of every letter",
		Long: fmt.Sprintf(`Pull the default version of every letter into %s/.

Letters without customizations also have their main copy refreshed, unless
that copy has local changes.`, localstore.DefaultsDir),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return a.pullDefaults(cmd.Context())
			})
		},
	}
}

// pullDefaults runs pull-defaults and commits the result.
func (a *app) pullDefaults(ctx context.Context) error {
	if err := a.begin(ctx); err != nil {
		return err
	}
	report, err := runDefaultsWith(ctx, a.out, a.deps(progressPrinter(a.out)))
	if cerr := a.commit(report.Written(), vcs.DefaultsMessage(report.Changed())); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return failuresError(report)
}

// runDefaultsWith is the testable core of defaults. The report is never nil.
func runDefaultsWith(ctx context.Context, out io.Writer, d reconcile.Deps) (*reconcile.Report, error) {
	fmt.Fprintln(out, "Checking all default letters for changes...")
	report, err := reconcile.PullDefaults(ctx, d)
	if err != nil {
		return report, fmt.Errorf("pull-defaults stopped: %w", err)
	}
	printFetchSummary(out, report)
	return report, nil
}
