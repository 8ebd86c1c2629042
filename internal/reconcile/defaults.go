package reconcile

import (
	"context"
	"fmt"

	"github.com/scriptotek/slipsomat/internal/conflict"
	"github.com/scriptotek/slipsomat/internal/letter"
	"github.com/scriptotek/slipsomat/internal/localstore"
	"github.com/scriptotek/slipsomat/internal/remote"
	"github.com/scriptotek/slipsomat/internal/status"
)

// PullDefaults refreshes the vendor default copy of every remote letter
// under the defaults directory. For a letter that is not customized, the
// current version is the default, so the main copy is updated too unless
// it holds local edits that were never pushed.
func PullDefaults(ctx context.Context, d Deps) (*Report, error) {
	d = d.withDefaults()

	entries, err := d.Remote.List(ctx)
	if err != nil {
		return &Report{}, fmt.Errorf("listing letters: %w", err)
	}
	d.Logger.Info("pulling default letters", "count", len(entries))

	report := &Report{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := pullDefaultOne(ctx, d, e)
		if err != nil {
			return report, err
		}
		report.add(res)
		d.report(res)
	}
	return report, nil
}

func pullDefaultOne(ctx context.Context, d Deps, e remote.Entry) (Result, error) {
	stored, _ := d.Ledger.Get(e.Filename)
	res := Result{
		Filename:    e.Filename,
		Modified:    e.Modified,
		OldChecksum: stored.DefaultChecksum,
		NewChecksum: stored.DefaultChecksum,
	}

	var (
		content letter.Content
		err     error
	)
	if e.Customized {
		content, err = d.Remote.FetchDefault(ctx, e.Filename)
	} else {
		content, err = d.Remote.Fetch(ctx, e.Filename)
	}
	if err != nil {
		if fatal(ctx, err) {
			return res, fmt.Errorf("fetching default %s: %w", e.Filename, err)
		}
		d.Logger.Error("fetch default failed", "file", e.Filename, "error", err)
		res.Outcome = Failed
		res.Err = err
		return res, nil
	}

	if err := d.Local.StoreDefault(e.Filename, content); err != nil {
		return res, fmt.Errorf("storing default %s: %w", e.Filename, err)
	}
	res.NewChecksum = content.Checksum()
	res.Written = []string{localstore.DefaultPath(e.Filename)}

	switch {
	case stored.DefaultChecksum == "":
		res.Outcome = New
	case stored.DefaultChecksum != content.Checksum():
		res.Outcome = Updated
	default:
		res.Outcome = Unchanged
	}

	if !e.Customized {
		if err := storeMainCopy(ctx, d, e, content, stored, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// storeMainCopy writes a non-customized letter's current version to the main
// path as well, keeping checksum and modified in step with it.
func storeMainCopy(ctx context.Context, d Deps, e remote.Entry, content letter.Content, stored status.Entry, res *Result) error {
	if stored.Checksum == content.Checksum() && stored.Modified == e.Modified && d.Local.Exists(e.Filename) {
		return nil
	}
	// A rejecting resolver: unpushed local edits are never replaced here.
	written, err := d.Local.Store(ctx, e.Filename, content, e.Modified, conflict.Static{})
	if err != nil {
		return fmt.Errorf("storing %s: %w", e.Filename, err)
	}
	if !written {
		res.Note = "main copy has local changes, not overwritten"
		d.Logger.Warn("main copy left alone", "file", e.Filename, "reason", "local changes")
		return nil
	}
	res.Written = append(res.Written, e.Filename)
	return nil
}
