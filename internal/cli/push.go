package cli

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scriptotek/slipsomat/internal/reconcile"
	"github.com/scriptotek/slipsomat/internal/vcs"
)

func newPushCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push [file ...]",
		Short: "Push locally modified letters to Alma",
		Long: `Push letters to Alma.

Without arguments every tracked letter with local modifications is pushed,
after confirmation. Files are given relative to the letters prefix
(paths.letters_prefix), for example:

  slipsomat push FulPlaceOnHoldShelfLetter.xsl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return a.push(cmd.Context(), args)
			})
		},
	}
}

// push uploads the named letters, or every modified one, and commits the
// updated ledger.
func (a *app) push(ctx context.Context, args []string) error {
	if err := a.begin(ctx); err != nil {
		return err
	}
	files := letterPaths(a.cfg.Paths.LettersPrefix, args)
	report, err := runPushWith(ctx, a.out, a.deps(progressPrinter(a.out)), files)
	if n := report.Count(reconcile.Pushed, reconcile.InSync); n > 0 {
		if cerr := a.commit(nil, vcs.PushMessage(report.Count(reconcile.Pushed))); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return err
	}
	return failuresError(report)
}

// letterPaths resolves command-line names against the letters prefix.
func letterPaths(prefix string, args []string) []string {
	files := make([]string, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimPrefix(path.Clean(arg), "./")
		if !strings.HasPrefix(arg, prefix+"/") {
			arg = path.Join(prefix, arg)
		}
		files = append(files, arg)
	}
	return files
}

// runPushWith is the testable core of push. The report is never nil.
func runPushWith(ctx context.Context, out io.Writer, d reconcile.Deps, files []string) (*reconcile.Report, error) {
	report, err := reconcile.Push(ctx, d, files)
	if err != nil {
		return report, fmt.Errorf("push stopped: %w", err)
	}

	switch {
	case report.Aborted:
		yellow.Fprintln(out, "Aborting")
	case len(report.Results) == 0:
		fmt.Fprintln(out, "No files contained local modifications.")
	default:
		green.Fprintf(out, "✅ %d file(s) pushed\n", report.Count(reconcile.Pushed))
		printTrouble(out, report)
	}
	return report, nil
}
