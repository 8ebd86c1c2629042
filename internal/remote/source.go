// Package remote defines the capability the reconciler needs from the place
// letters are published to.
package remote

import (
	"context"
	"errors"

	"github.com/scriptotek/slipsomat/internal/letter"
)

var (
	// ErrTimeout is a transient failure; read operations may be retried.
	ErrTimeout = errors.New("remote operation timed out")
	// ErrSession means the remote session is broken and must be restarted.
	ErrSession = errors.New("remote session failure")
	// ErrNotFound means the filename is not in the remote listing.
	ErrNotFound = errors.New("letter not found in remote listing")
)

// Entry is one row of the remote listing.
type Entry struct {
	Filename   string
	Modified   string // date-only stamp, as displayed remotely
	Index      int
	Customized bool
}

// Source lists, reads and writes remote letters.
//
// List returns entries in remote display order and may be called repeatedly.
// Fetch reads the current (customized) version; FetchDefault reads the
// vendor default. Submit replaces the content of filename.
type Source interface {
	List(ctx context.Context) ([]Entry, error)
	Fetch(ctx context.Context, filename string) (letter.Content, error)
	FetchDefault(ctx context.Context, filename string) (letter.Content, error)
	Submit(ctx context.Context, filename string, content letter.Content) error
}

// Find returns the entry for filename.
func Find(entries []Entry, filename string) (Entry, bool) {
	for _, e := range entries {
		if e.Filename == filename {
			return e, true
		}
	}
	return Entry{}, false
}
