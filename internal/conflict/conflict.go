// Package conflict defines how divergent local and remote letter versions are
// presented to the operator and how the operator's decision is returned to
// the reconciler.
package conflict

import (
	"context"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/scriptotek/slipsomat/internal/letter"
)

// Decision is the outcome of a conflict.
type Decision int

const (
	// Reject skips the file and leaves the ledger untouched.
	Reject Decision = iota
	// Accept proceeds and overwrites the other side.
	Accept
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// Conflict describes a file whose local and remote versions both diverged
// from the last synchronized state.
type Conflict struct {
	Filename string
	Local    letter.Content
	Remote   letter.Content
	Reason   string
}

// Resolver decides a conflict.
type Resolver interface {
	Resolve(ctx context.Context, c Conflict) (Decision, error)
}

// Confirmer asks for approval of a batch operation over items.
type Confirmer interface {
	Confirm(ctx context.Context, question string, items []string) (bool, error)
}

// Static answers every conflict and confirmation with fixed values. The zero
// value rejects conflicts and declines confirmations.
type Static struct {
	Decision Decision
	Approve  bool
}

var (
	_ Resolver  = Static{}
	_ Confirmer = Static{}
)

func (s Static) Resolve(ctx context.Context, _ Conflict) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Reject, err
	}
	return s.Decision, nil
}

func (s Static) Confirm(ctx context.Context, _ string, _ []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.Approve, nil
}

// Diff returns a unified diff from the local to the remote version.
func Diff(c Conflict) string {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(withNewline(c.Local.Text())),
		B:        difflib.SplitLines(withNewline(c.Remote.Text())),
		FromFile: "local/" + c.Filename,
		ToFile:   "remote/" + c.Filename,
		Context:  3,
	}
	out, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return ""
	}
	return out
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
