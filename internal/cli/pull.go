package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scriptotek/slipsomat/internal/reconcile"
	"github.com/scriptotek/slipsomat/internal/vcs"
)

func newPullCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Pull in letters modified directly in Alma",
		Long: `Pull in letters modified directly in Alma, replacing the local copies.

Letters whose update date matches status.json are not downloaded again.
A local copy with changes not yet pushed is only replaced after confirmation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return a.pull(cmd.Context())
			})
		},
	}
}

// pull runs a pull against the connected remote and commits the result.
func (a *app) pull(ctx context.Context) error {
	if err := a.begin(ctx); err != nil {
		return err
	}
	report, err := runPullWith(ctx, a.out, a.deps(progressPrinter(a.out)))
	if cerr := a.commit(report.Written(), vcs.PullMessage(report.Changed())); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return failuresError(report)
}

// runPullWith is the testable core of pull. The report is never nil.
func runPullWith(ctx context.Context, out io.Writer, d reconcile.Deps) (*reconcile.Report, error) {
	fmt.Fprintln(out, "Checking all letters for changes...")
	report, err := reconcile.Pull(ctx, d)
	if err != nil {
		return report, fmt.Errorf("pull stopped: %w", err)
	}
	printFetchSummary(out, report)
	return report, nil
}
