package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/scriptotek/slipsomat/internal/conflict"
	"github.com/scriptotek/slipsomat/internal/status"
)

// PushConflictReason is shown when the remote copy changed since the last
// synchronization.
const PushConflictReason = "The checksum of the remote file does not match the value in status.json. " +
	"It might have been modified directly in Alma."

// ConfirmQuestion is asked before pushing an automatically selected set.
const ConfirmQuestion = "Push updates to Alma?"

// ErrNoLocalFile is recorded for a push target without a local file.
var ErrNoLocalFile = errors.New("no local file")

// Modified returns the tracked letters whose local copy differs from the
// ledger, sorted by filename.
func Modified(d Deps) ([]string, error) {
	var names []string
	for _, name := range d.Ledger.Filenames() {
		modified, err := d.Local.IsModified(name)
		if err != nil {
			return nil, err
		}
		if modified {
			names = append(names, name)
		}
	}
	return names, nil
}

// Push uploads letters to the remote. With no filenames, every locally
// modified letter is selected and the operator must confirm the list first;
// an empty selection returns an empty report without touching the remote.
//
// A letter with invalid XML is never submitted. A remote copy that changed
// since the last synchronization goes through the conflict resolver. A
// failed submit aborts the run, since the remote state is then unknown.
func Push(ctx context.Context, d Deps, filenames []string) (*Report, error) {
	d = d.withDefaults()
	report := &Report{}

	targets := filenames
	if len(targets) == 0 {
		var err error
		targets, err = Modified(d)
		if err != nil {
			return report, err
		}
		if len(targets) == 0 {
			return report, nil
		}
		ok, err := d.Confirm.Confirm(ctx, ConfirmQuestion, targets)
		if err != nil {
			return report, err
		}
		if !ok {
			report.Aborted = true
			return report, nil
		}
	}

	for _, name := range targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := pushOne(ctx, d, name)
		if err != nil && res.Err == nil {
			res.Outcome = Failed
			res.Err = err
		}
		report.add(res)
		d.report(res)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func pushOne(ctx context.Context, d Deps, name string) (Result, error) {
	stored, _ := d.Ledger.Get(name)
	res := Result{
		Filename:    name,
		OldChecksum: stored.Checksum,
		NewChecksum: stored.Checksum,
	}

	local, err := d.Local.Content(name)
	if err != nil {
		res.Outcome = Failed
		res.Err = err
		return res, nil
	}
	if local.IsEmpty() {
		res.Outcome = Failed
		res.Err = ErrNoLocalFile
		return res, nil
	}
	if err := local.Validate(); err != nil {
		d.Logger.Error("XML file contains error and will be skipped", "file", name, "error", err)
		res.Outcome = Invalid
		res.Err = err
		return res, nil
	}

	current, err := d.Remote.Fetch(ctx, name)
	if err != nil {
		res.Outcome = Failed
		res.Err = err
		if fatal(ctx, err) {
			return res, fmt.Errorf("fetching %s: %w", name, err)
		}
		d.Logger.Error("fetch before push failed", "file", name, "error", err)
		return res, nil
	}

	if current.Equal(local) {
		err := d.Ledger.Set(name, status.Checksum, local.Checksum())
		if err != nil {
			return res, err
		}
		res.Outcome = InSync
		res.NewChecksum = local.Checksum()
		return res, nil
	}

	if current.Checksum() != stored.Checksum {
		decision, err := d.Resolver.Resolve(ctx, conflict.Conflict{
			Filename: name,
			Local:    local,
			Remote:   current,
			Reason:   PushConflictReason,
		})
		if err != nil {
			return res, err
		}
		if decision != conflict.Accept {
			d.Logger.Warn("skipped due to conflict", "file", name)
			res.Outcome = Skipped
			return res, nil
		}
	}

	if err := d.Remote.Submit(ctx, name, local); err != nil {
		res.Outcome = Failed
		res.Err = err
		return res, fmt.Errorf("submitting %s: %w", name, err)
	}

	stamp := d.today()
	err = d.Ledger.Update(name, func(e *status.Entry) error {
		e.Checksum = local.Checksum()
		e.Modified = stamp
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Outcome = Pushed
	res.Modified = stamp
	res.NewChecksum = local.Checksum()
	d.Logger.Info("pushed letter", "file", name, "checksum", res.NewChecksum)
	return res, nil
}
