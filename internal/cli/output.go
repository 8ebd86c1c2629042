package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/scriptotek/slipsomat/internal/letter"
	"github.com/scriptotek/slipsomat/internal/reconcile"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

// progressPrinter returns a Progress callback writing one line per file.
func progressPrinter(out io.Writer) func(reconcile.Result) {
	return func(res reconcile.Result) {
		fmt.Fprintf(out, "- %-60s %s\n", res.Filename, describe(res))
	}
}

// describe renders the outcome of one file.
func describe(res reconcile.Result) string {
	short := letter.ShortSum(res.NewChecksum)
	var line string
	switch res.Outcome {
	case reconcile.New:
		line = green.Sprintf("fetched new letter @ %s", short)
	case reconcile.Updated:
		line = green.Sprintf("updated from %s to %s", letter.ShortSum(res.OldChecksum), short)
	case reconcile.Restored:
		line = green.Sprintf("restored @ %s", short)
	case reconcile.Pushed:
		line = green.Sprintf("pushed @ %s", short)
	case reconcile.InSync:
		line = fmt.Sprintf("already in sync @ %s", short)
	case reconcile.Skipped:
		line = yellow.Sprint(res.Outcome.String())
	case reconcile.Failed, reconcile.Invalid:
		line = red.Sprintf("%s: %v", res.Outcome, res.Err)
	default:
		line = res.Outcome.String()
	}
	if res.Note != "" {
		line += yellow.Sprintf(" (%s)", res.Note)
	}
	return line
}

// printFetchSummary ends a pull or defaults run.
func printFetchSummary(out io.Writer, report *reconcile.Report) {
	total := len(report.Results)
	changed := report.Changed()
	if changed > 0 {
		green.Fprintf(out, "✅ %d of %d files contained new modifications\n", changed, total)
	} else {
		fmt.Fprintf(out, "✅ %d of %d files contained new modifications\n", changed, total)
	}
	printTrouble(out, report)
}

// printTrouble reports skipped and failed files after the summary line.
func printTrouble(out io.Writer, report *reconcile.Report) {
	if n := report.Count(reconcile.Skipped); n > 0 {
		yellow.Fprintf(out, "⚠️  %d file(s) skipped because of conflicts\n", n)
	}
	if n := report.Failures(); n > 0 {
		red.Fprintf(out, "❌ %d file(s) failed\n", n)
	}
}

// errFilesFailed marks a run whose per-file failures were already reported.
var errFilesFailed = errors.New("failed")

// failuresError turns a report with failures into a command error so the
// process exits non-zero.
func failuresError(report *reconcile.Report) error {
	if report == nil {
		return nil
	}
	if n := report.Failures(); n > 0 {
		return fmt.Errorf("%d file(s) %w", n, errFilesFailed)
	}
	return nil
}
