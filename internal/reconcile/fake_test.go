package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/scriptotek/slipsomat/internal/conflict"
	"github.com/scriptotek/slipsomat/internal/letter"
	"github.com/scriptotek/slipsomat/internal/localstore"
	"github.com/scriptotek/slipsomat/internal/remote"
	"github.com/scriptotek/slipsomat/internal/status"
)

// fakeRemote is an in-memory remote.Source that counts calls.
type fakeRemote struct {
	entries  []remote.Entry
	content  map[string]string
	defaults map[string]string

	// fetchErrs are returned, in order, by Fetch for a filename.
	fetchErrs map[string][]error
	listErr   error
	submitErr error

	listCalls      int
	fetches        map[string]int
	defaultFetches map[string]int
	submits        []string
}

var _ remote.Source = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		content:        map[string]string{},
		defaults:       map[string]string{},
		fetchErrs:      map[string][]error{},
		fetches:        map[string]int{},
		defaultFetches: map[string]int{},
	}
}

func (f *fakeRemote) add(name, stamp, text string, customized bool) {
	f.entries = append(f.entries, remote.Entry{
		Filename:   name,
		Modified:   stamp,
		Index:      len(f.entries),
		Customized: customized,
	})
	f.content[name] = text
}

func (f *fakeRemote) totalFetches() int {
	n := 0
	for _, c := range f.fetches {
		n += c
	}
	for _, c := range f.defaultFetches {
		n += c
	}
	return n
}

func (f *fakeRemote) List(context.Context) ([]remote.Entry, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.entries, nil
}

func (f *fakeRemote) Fetch(_ context.Context, name string) (letter.Content, error) {
	f.fetches[name]++
	if errs := f.fetchErrs[name]; len(errs) > 0 {
		f.fetchErrs[name] = errs[1:]
		if errs[0] != nil {
			return letter.Content{}, errs[0]
		}
	}
	text, ok := f.content[name]
	if !ok {
		return letter.Content{}, remote.ErrNotFound
	}
	return letter.New(text), nil
}

func (f *fakeRemote) FetchDefault(_ context.Context, name string) (letter.Content, error) {
	f.defaultFetches[name]++
	text, ok := f.defaults[name]
	if !ok {
		return letter.Content{}, remote.ErrNotFound
	}
	return letter.New(text), nil
}

func (f *fakeRemote) Submit(_ context.Context, name string, c letter.Content) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submits = append(f.submits, name)
	f.content[name] = c.Text()
	return nil
}

// countingResolver answers with a fixed decision and records conflicts.
type countingResolver struct {
	decision conflict.Decision
	seen     []conflict.Conflict
}

var _ conflict.Resolver = (*countingResolver)(nil)

func (r *countingResolver) Resolve(_ context.Context, c conflict.Conflict) (conflict.Decision, error) {
	r.seen = append(r.seen, c)
	return r.decision, nil
}

// countingConfirmer answers with a fixed value and records the asked items.
type countingConfirmer struct {
	answer bool
	asked  [][]string
}

var _ conflict.Confirmer = (*countingConfirmer)(nil)

func (c *countingConfirmer) Confirm(_ context.Context, _ string, items []string) (bool, error) {
	c.asked = append(c.asked, items)
	return c.answer, nil
}

// Today is 02/01/2024 in the remote's day/month/year layout.
var today = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

type env struct {
	fs       afero.Fs
	ledger   *status.File
	local    *localstore.Store
	remote   *fakeRemote
	resolver *countingResolver
	confirm  *countingConfirmer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fs := afero.NewMemMapFs()
	ledger := status.New(fs, "status.json")
	return &env{
		fs:       fs,
		ledger:   ledger,
		local:    localstore.New(fs, ledger),
		remote:   newFakeRemote(),
		resolver: &countingResolver{},
		confirm:  &countingConfirmer{answer: true},
	}
}

func (e *env) deps() Deps {
	return Deps{
		Ledger:   e.ledger,
		Local:    e.local,
		Remote:   e.remote,
		Resolver: e.resolver,
		Confirm:  e.confirm,
		Retry:    remote.DefaultRetry,
		Now:      func() time.Time { return today },
	}
}

func (e *env) writeLocal(t *testing.T, name, text string) {
	t.Helper()
	if err := afero.WriteFile(e.fs, name, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
}

func (e *env) readLocal(t *testing.T, name string) string {
	t.Helper()
	data, err := afero.ReadFile(e.fs, name)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// track records name as synchronized at text and stamp.
func (e *env) track(t *testing.T, name, text, stamp string) {
	t.Helper()
	err := e.ledger.Update(name, func(en *status.Entry) error {
		en.Checksum = letter.Checksum(letter.Normalize(text))
		en.Modified = stamp
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func resultFor(t *testing.T, r *Report, name string) Result {
	t.Helper()
	for _, res := range r.Results {
		if res.Filename == name {
			return res
		}
	}
	t.Fatalf("no result for %s", name)
	return Result{}
}
