package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/scriptotek/slipsomat/internal/conflict"
	"github.com/scriptotek/slipsomat/internal/letter"
	"github.com/scriptotek/slipsomat/internal/remote"
	"github.com/scriptotek/slipsomat/internal/status"
)

const loan = "xsl/letters/Loan.xsl"

// --- needsFetch ---

func TestNeedsFetch(t *testing.T) {
	t.Parallel()
	entry := remote.Entry{Filename: loan, Modified: "01/01/2024"}
	synced := status.Entry{Checksum: "abc", Modified: "01/01/2024"}
	cases := []struct {
		name   string
		entry  remote.Entry
		stored status.Entry
		today  string
		exists bool
		want   bool
	}{
		{"unchanged stamp", entry, synced, "02/01/2024", true, false},
		{"stamp is today", entry, synced, "01/01/2024", true, true},
		{"stamp differs", remote.Entry{Modified: "05/01/2024"}, synced, "06/01/2024", true, true},
		{"never synced", entry, status.Entry{}, "02/01/2024", true, true},
		{"no local file", entry, synced, "02/01/2024", false, true},
		{"empty remote stamp", remote.Entry{}, status.Entry{Checksum: "abc"}, "02/01/2024", true, true},
	}
	for _, tc := range cases {
		if got := needsFetch(tc.entry, tc.stored, tc.today, tc.exists); got != tc.want {
			t.Errorf("%s: needsFetch() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// --- Pull ---

func TestPull_NewLetter(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.remote.add(loan, "01/01/2024", "<a>new</a>", true)

	report, err := Pull(context.Background(), e.deps())
	if err != nil {
		t.Fatalf("Pull() error: %v", err)
	}
	res := resultFor(t, report, loan)
	if res.Outcome != New {
		t.Errorf("outcome = %v, want new", res.Outcome)
	}
	entry, ok := e.ledger.Get(loan)
	if !ok {
		t.Fatal("no ledger entry created")
	}
	if entry.Checksum != letter.Checksum("<a>new</a>") || entry.Modified != "01/01/2024" {
		t.Errorf("ledger entry = %+v", entry)
	}
	if got := e.readLocal(t, loan); got != "<a>new</a>" {
		t.Errorf("local file = %q", got)
	}
	if report.Changed() != 1 {
		t.Errorf("Changed() = %d, want 1", report.Changed())
	}
}

func TestPull_UnchangedStampSkipsFetch(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.writeLocal(t, loan, "<a>A</a>")
	e.track(t, loan, "<a>A</a>", "01/01/2024")
	e.remote.add(loan, "01/01/2024", "<a>B</a>", true)

	report, err := Pull(context.Background(), e.deps())
	if err != nil {
		t.Fatal(err)
	}
	if got := resultFor(t, report, loan).Outcome; got != Unchanged {
		t.Errorf("outcome = %v, want no changes", got)
	}
	if e.remote.fetches[loan] != 0 {
		t.Errorf("fetched %d times, want 0", e.remote.fetches[loan])
	}
}

func TestPull_SameDayStampForcesFetch(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.writeLocal(t, loan, "<a>A</a>")
	e.track(t, loan, "<a>A</a>", "02/01/2024")
	e.remote.add(loan, "02/01/2024", "<a>B</a>", true)

	report, err := Pull(context.Background(), e.deps())
	if err != nil {
		t.Fatal(err)
	}
	if e.remote.fetches[loan] != 1 {
		t.Errorf("fetched %d times, want 1", e.remote.fetches[loan])
	}
	if got := resultFor(t, report, loan).Outcome; got != Updated {
		t.Errorf("outcome = %v, want updated", got)
	}
}

func TestPull_RemoteChangedLocalClean(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.writeLocal(t, loan, "<a>A</a>")
	e.track(t, loan, "<a>A</a>", "01/01/2024")
	e.remote.add(loan, "02/01/2024", "<a>B</a>", true)

	report, err := Pull(context.Background(), e.deps())
	if err != nil {
		t.Fatal(err)
	}
	res := resultFor(t, report, loan)
	if res.Outcome != Updated {
		t.Errorf("outcome = %v, want updated", res.Outcome)
	}
	if res.OldChecksum != letter.Checksum("<a>A</a>") || res.NewChecksum != letter.Checksum("<a>B</a>") {
		t.Errorf("checksums = %s -> %s", res.OldChecksum, res.NewChecksum)
	}
	if len(e.resolver.seen) != 0 {
		t.Errorf("conflict prompted %d times, want 0", len(e.resolver.seen))
	}
	if got := e.readLocal(t, loan); got != "<a>B</a>" {
		t.Errorf("local file = %q", got)
	}
	if got := e.ledger.Value(loan, status.Checksum); got != letter.Checksum("<a>B</a>") {
		t.Errorf("ledger checksum = %s", got)
	}
	if got := e.ledger.Value(loan, status.Modified); got != "02/01/2024" {
		t.Errorf("ledger modified = %s", got)
	}
}

func TestPull_ThreeWayConflictRaisedBeforeOverwrite(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.writeLocal(t, loan, "<a>C</a>")
	e.track(t, loan, "<a>A</a>", "01/01/2024")
	e.remote.add(loan, "02/01/2024", "<a>B</a>", true)
	e.resolver.decision = conflict.Reject

	report, err := Pull(context.Background(), e.deps())
	if err != nil {
		t.Fatal(err)
	}
	if len(e.resolver.seen) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(e.resolver.seen))
	}
	c := e.resolver.seen[0]
	if c.Local.Text() != "<a>C</a>" || c.Remote.Text() != "<a>B</a>" {
		t.Errorf("conflict local/remote = %q/%q", c.Local.Text(), c.Remote.Text())
	}
	if got := resultFor(t, report, loan).Outcome; got != Skipped {
		t.Errorf("outcome = %v, want skipped", got)
	}
	if got := e.readLocal(t, loan); got != "<a>C</a>" {
		t.Errorf("local file overwritten: %q", got)
	}
	entry, _ := e.ledger.Get(loan)
	if entry.Checksum != letter.Checksum("<a>A</a>") || entry.Modified != "01/01/2024" {
		t.Errorf("ledger changed after rejected conflict: %+v", entry)
	}
}

func TestPull_ThreeWayConflictAccepted(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.writeLocal(t, loan, "<a>C</a>")
	e.track(t, loan, "<a>A</a>", "01/01/2024")
	e.remote.add(loan, "02/01/2024", "<a>B</a>", true)
	e.resolver.decision = conflict.Accept

	report, err := Pull(context.Background(), e.deps())
	if err != nil {
		t.Fatal(err)
	}
	if got := resultFor(t, report, loan).Outcome; got != Updated {
		t.Errorf("outcome = %v, want updated", got)
	}
	if got := e.readLocal(t, loan); got != "<a>B</a>" {
		t.Errorf("local file = %q", got)
	}
}

func TestPull_Idempotent(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.remote.add("xsl/letters/A.xsl", "01/01/2024", "<a/>", true)
	e.remote.add("xsl/letters/B.xsl", "15/12/2023", "<b/>", false)
	e.remote.add("xsl/letters/C.xsl", "02/01/2024", "<c/>", true)

	first, err := Pull(context.Background(), e.deps())
	if err != nil {
		t.Fatal(err)
	}
	if first.Changed() != 3 {
		t.Errorf("first run Changed() = %d, want 3", first.Changed())
	}

	second, err := Pull(context.Background(), e.deps())
	if err != nil {
		t.Fatal(err)
	}
	if second.Changed() != 0 {
		t.Errorf("second run Changed() = %d, want 0", second.Changed())
	}
	if second.Count(Unchanged) != 3 {
		t.Errorf("second run unchanged = %d, want 3", second.Count(Unchanged))
	}
	// Only the letter stamped today needs its content checked again.
	if e.remote.fetches["xsl/letters/A.xsl"] != 1 || e.remote.fetches["xsl/letters/C.xsl"] != 2 {
		t.Errorf("fetches = %v", e.remote.fetches)
	}
}

func TestPull_StampChangedContentSame(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.writeLocal(t, loan, "<a>A</a>")
	e.track(t, loan, "<a>A</a>", "01/01/2024")
	e.remote.add(loan, "02/01/2024", "<a>A</a>\r\n", true)

	report, err := Pull(context.Background(), e.deps())
	if err != nil {
		t.Fatal(err)
	}
	if got := resultFor(t, report, loan).Outcome; got != Unchanged {
		t.Errorf("outcome = %v, want no changes", got)
	}
	if got := e.ledger.Value(loan, status.Modified); got != "01/01/2024" {
		t.Errorf("ledger modified = %s, want untouched", got)
	}
}

func TestPull_RestoresMissingLocalFile(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.track(t, loan, "<a>A</a>", "01/01/2024")
	e.remote.add(loan, "01/01/2024", "<a>A</a>", true)

	report, err := Pull(context.Background(), e.deps())
	if err != nil {
		t.Fatal(err)
	}
	if got := resultFor(t, report, loan).Outcome; got != Restored {
		t.Errorf("outcome = %v, want restored", got)
	}
	if got := e.readLocal(t, loan); got != "<a>A</a>" {
		t.Errorf("local file = %q", got)
	}
}

func TestPull_TimeoutRetriedOnce(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.remote.add(loan, "01/01/2024", "<a/>", true)
	e.remote.fetchErrs[loan] = []error{fmt.Errorf("view: %w", remote.ErrTimeout)}

	report, err := Pull(context.Background(), e.deps())
	if err != nil {
		t.Fatal(err)
	}
	if got := resultFor(t, report, loan).Outcome; got != New {
		t.Errorf("outcome = %v, want new", got)
	}
	if e.remote.fetches[loan] != 2 {
		t.Errorf("fetches = %d, want 2", e.remote.fetches[loan])
	}
}

func TestPull_PerFileFailureContinues(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.remote.add("xsl/letters/A.xsl", "01/01/2024", "<a/>", true)
	e.remote.add("xsl/letters/B.xsl", "01/01/2024", "<b/>", true)
	e.remote.fetchErrs["xsl/letters/A.xsl"] = []error{remote.ErrTimeout, remote.ErrTimeout}

	report, err := Pull(context.Background(), e.deps())
	if err != nil {
		t.Fatalf("Pull() error: %v", err)
	}
	a := resultFor(t, report, "xsl/letters/A.xsl")
	if a.Outcome != Failed || !errors.Is(a.Err, remote.ErrTimeout) {
		t.Errorf("A = %v (%v), want failed with timeout", a.Outcome, a.Err)
	}
	if e.remote.fetches["xsl/letters/A.xsl"] != 2 {
		t.Errorf("A fetches = %d, want 2", e.remote.fetches["xsl/letters/A.xsl"])
	}
	if got := resultFor(t, report, "xsl/letters/B.xsl").Outcome; got != New {
		t.Errorf("B outcome = %v, want new", got)
	}
	if _, ok := e.ledger.Get("xsl/letters/A.xsl"); ok {
		t.Error("ledger entry created for failed file")
	}
	if report.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", report.Failures())
	}
}

func TestPull_SessionErrorAborts(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.remote.add("xsl/letters/A.xsl", "01/01/2024", "<a/>", true)
	e.remote.add("xsl/letters/B.xsl", "01/01/2024", "<b/>", true)
	e.remote.add("xsl/letters/C.xsl", "01/01/2024", "<c/>", true)
	e.remote.fetchErrs["xsl/letters/B.xsl"] = []error{remote.ErrSession}

	report, err := Pull(context.Background(), e.deps())
	if !errors.Is(err, remote.ErrSession) {
		t.Fatalf("Pull() error = %v, want ErrSession", err)
	}
	if len(report.Results) != 1 {
		t.Errorf("results = %d, want 1 (partial)", len(report.Results))
	}
	if _, ok := e.ledger.Get("xsl/letters/A.xsl"); !ok {
		t.Error("progress before the failure was not persisted")
	}
	if e.remote.fetches["xsl/letters/C.xsl"] != 0 {
		t.Error("processing continued after session failure")
	}
}

func TestPull_ListErrorReturned(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.remote.listErr = remote.ErrSession
	_, err := Pull(context.Background(), e.deps())
	if !errors.Is(err, remote.ErrSession) {
		t.Errorf("Pull() error = %v, want ErrSession", err)
	}
}

func TestPull_CancelledContext(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.remote.add(loan, "01/01/2024", "<a/>", true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Pull(ctx, e.deps()); !errors.Is(err, context.Canceled) {
		t.Errorf("Pull() error = %v, want context.Canceled", err)
	}
}

func TestPull_ProgressPerFile(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.remote.add("xsl/letters/A.xsl", "01/01/2024", "<a/>", true)
	e.remote.add("xsl/letters/B.xsl", "01/01/2024", "<b/>", true)
	var seen []string
	d := e.deps()
	d.Progress = func(r Result) { seen = append(seen, r.Filename) }

	if _, err := Pull(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != "xsl/letters/A.xsl" || seen[1] != "xsl/letters/B.xsl" {
		t.Errorf("progress = %v", seen)
	}
}
