// Package reconcile implements pull, pull-defaults and push between the
// local working copy and the remote letter source.
//
// The functions are stateless: every collaborator is passed in through Deps,
// so a restarted remote session only needs a new Deps value.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/scriptotek/slipsomat/internal/conflict"
	"github.com/scriptotek/slipsomat/internal/localstore"
	"github.com/scriptotek/slipsomat/internal/logging"
	"github.com/scriptotek/slipsomat/internal/remote"
	"github.com/scriptotek/slipsomat/internal/status"
)

// DefaultDateFormat is the layout of the remote modification stamp.
const DefaultDateFormat = "02/01/2006"

// Deps bundles the collaborators of a reconciliation run.
type Deps struct {
	Ledger   *status.File
	Local    *localstore.Store
	Remote   remote.Source
	Resolver conflict.Resolver
	Confirm  conflict.Confirmer

	// Retry applies to remote reads. The zero value tries once.
	Retry remote.RetryPolicy

	// Now defaults to time.Now.
	Now func() time.Time
	// DateFormat defaults to DefaultDateFormat.
	DateFormat string

	Logger *slog.Logger

	// Progress, if set, is called after each file is processed.
	Progress func(Result)
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.DateFormat == "" {
		d.DateFormat = DefaultDateFormat
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Resolver == nil {
		d.Resolver = conflict.Static{}
	}
	if d.Confirm == nil {
		d.Confirm = conflict.Static{}
	}
	d.Remote = remote.Retrying(d.Remote, d.Retry)
	return d
}

func (d Deps) today() string {
	return d.Now().Format(d.DateFormat)
}

func (d Deps) report(r Result) {
	if d.Progress != nil {
		d.Progress(r)
	}
}

// Outcome classifies what happened to one file.
type Outcome int

const (
	Unchanged Outcome = iota
	New
	Updated
	Restored
	Skipped // conflict rejected
	Failed
	Invalid
	Pushed
	InSync
)

var outcomeNames = map[Outcome]string{
	Unchanged: "no changes",
	New:       "new",
	Updated:   "updated",
	Restored:  "restored",
	Skipped:   "skipped (conflict)",
	Failed:    "failed",
	Invalid:   "invalid",
	Pushed:    "pushed",
	InSync:    "in sync",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Changed reports whether the outcome wrote something.
func (o Outcome) Changed() bool {
	switch o {
	case New, Updated, Restored, Pushed:
		return true
	}
	return false
}

// Result is the outcome for one file.
type Result struct {
	Filename    string
	Modified    string // remote stamp, when known
	Outcome     Outcome
	OldChecksum string
	NewChecksum string
	// Written lists the local paths written, relative to the working copy.
	Written []string
	// Note carries extra detail, such as why a copy was left alone.
	Note string
	Err  error
}

// Report collects the results of one operation.
type Report struct {
	Results []Result
	// Aborted is set when the operator declined the batch.
	Aborted bool
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
}

// Count returns how many results have one of the outcomes.
func (r *Report) Count(outcomes ...Outcome) int {
	n := 0
	for _, res := range r.Results {
		for _, o := range outcomes {
			if res.Outcome == o {
				n++
				break
			}
		}
	}
	return n
}

// Changed returns how many files were written locally or remotely.
func (r *Report) Changed() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome.Changed() {
			n++
		}
	}
	return n
}

// Failures returns how many files failed or were invalid.
func (r *Report) Failures() int {
	return r.Count(Failed, Invalid)
}

// Written returns every local path written during the operation.
func (r *Report) Written() []string {
	var paths []string
	for _, res := range r.Results {
		paths = append(paths, res.Written...)
	}
	return paths
}

// fatal reports whether err must abort the whole batch instead of failing
// one file.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, remote.ErrSession)
}
