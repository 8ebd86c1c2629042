package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scriptotek/slipsomat/internal/letter"
	"github.com/scriptotek/slipsomat/internal/localstore"
	"github.com/scriptotek/slipsomat/internal/status"
)

// newStatusCmd creates the `status` command.
// Usage: slipsomat status [--strict]
func newStatusCmd(opts *rootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"check"},
		Short:   "Show letters with local modifications",
		Long: `Compares the letters in the working copy with status.json, without
contacting Alma. Lists letters that were modified locally, deleted, or never
synchronized.

With --strict, the command exits with a non-zero code if anything differs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return a.status(strict)
			})
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with error code if any letter differs")

	return cmd
}

func (a *app) status(strict bool) error {
	return runStatusWith(a.out, a.ledger, a.local, a.cfg.Paths.LettersPrefix, strict)
}

// runStatusWith is the testable core of status.
func runStatusWith(out io.Writer, ledger *status.File, local *localstore.Store, prefix string, strict bool) error {
	files, err := local.Glob(prefix + "/**/*.xsl")
	if err != nil {
		return err
	}
	results, err := CheckLetters(ledger, local, files)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "📋 No letters tracked yet. Run 'slipsomat pull' first.")
		return nil
	}

	var issues, ok int
	for _, r := range results {
		switch r.Status {
		case CheckOK:
			ok++
		case CheckModified:
			yellow.Fprintf(out, "  ✏️  %s — modified (last synced @ %s)\n", r.Filename, letter.ShortSum(r.Checksum))
			issues++
		case CheckMissing:
			red.Fprintf(out, "  ❌ %s — missing (was synced)\n", r.Filename)
			issues++
		case CheckUntracked:
			yellow.Fprintf(out, "  ⚠️  %s — not in %s\n", r.Filename, ledger.Path())
			issues++
		}
	}

	if issues == 0 {
		green.Fprintf(out, "✅ All %d letter(s) match the last synchronization.\n", ok)
		return nil
	}
	msg := fmt.Sprintf("%d of %d letter(s) differ from the last synchronization.", issues, len(results))
	if strict {
		return fmt.Errorf("%s", msg)
	}
	fmt.Fprintf(out, "\n%s\n", msg)
	return nil
}
