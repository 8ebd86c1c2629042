package reconcile

import (
	"context"
	"fmt"

	"github.com/scriptotek/slipsomat/internal/remote"
	"github.com/scriptotek/slipsomat/internal/status"
)

// needsFetch decides whether the remote content must be read. The stamp has
// day granularity, so a stamp equal to today proves nothing and a stored
// stamp only counts when a local copy exists to compare against.
func needsFetch(e remote.Entry, stored status.Entry, today string, localExists bool) bool {
	if !localExists || stored.Checksum == "" {
		return true
	}
	if e.Modified == "" || e.Modified != stored.Modified {
		return true
	}
	return e.Modified == today
}

// Pull brings local letters up to date with the remote listing, one file at
// a time in listing order. Per-file failures are recorded in the report; a
// broken session, a local write failure or a cancelled context aborts the
// run and returns the partial report with the error.
func Pull(ctx context.Context, d Deps) (*Report, error) {
	d = d.withDefaults()
	log := d.Logger.With("op", "pull")

	entries, err := d.Remote.List(ctx)
	if err != nil {
		return &Report{}, fmt.Errorf("listing letters: %w", err)
	}
	log.Info("checking letters for changes", "count", len(entries))

	today := d.today()
	report := &Report{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := pullOne(ctx, d, e, today)
		if err != nil {
			return report, err
		}
		report.add(res)
		d.report(res)
	}
	return report, nil
}

func pullOne(ctx context.Context, d Deps, e remote.Entry, today string) (Result, error) {
	stored, _ := d.Ledger.Get(e.Filename)
	res := Result{
		Filename:    e.Filename,
		Modified:    e.Modified,
		OldChecksum: stored.Checksum,
		NewChecksum: stored.Checksum,
	}
	localExists := d.Local.Exists(e.Filename)

	if !needsFetch(e, stored, today, localExists) {
		res.Outcome = Unchanged
		return res, nil
	}

	content, err := d.Remote.Fetch(ctx, e.Filename)
	if err != nil {
		if fatal(ctx, err) {
			return res, fmt.Errorf("fetching %s: %w", e.Filename, err)
		}
		d.Logger.Error("fetch failed", "file", e.Filename, "error", err)
		res.Outcome = Failed
		res.Err = err
		return res, nil
	}

	if content.Checksum() == stored.Checksum && localExists {
		res.Outcome = Unchanged
		return res, nil
	}

	written, err := d.Local.Store(ctx, e.Filename, content, e.Modified, d.Resolver)
	if err != nil {
		return res, fmt.Errorf("storing %s: %w", e.Filename, err)
	}
	if !written {
		d.Logger.Warn("skipped due to conflict", "file", e.Filename)
		res.Outcome = Skipped
		return res, nil
	}

	res.NewChecksum = content.Checksum()
	res.Written = []string{e.Filename}
	switch {
	case stored.Checksum == "":
		res.Outcome = New
	case stored.Checksum == content.Checksum():
		res.Outcome = Restored
	default:
		res.Outcome = Updated
	}
	d.Logger.Info("pulled letter", "file", e.Filename, "outcome", res.Outcome.String(), "checksum", res.NewChecksum)
	return res, nil
}
