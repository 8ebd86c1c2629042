// Package localstore reads and writes letter files in the working copy and
// compares them against the status ledger.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/scriptotek/slipsomat/internal/conflict"
	"github.com/scriptotek/slipsomat/internal/letter"
	"github.com/scriptotek/slipsomat/internal/status"
)

// DefaultsDir is the directory holding vendor default copies.
const DefaultsDir = "defaults"

// PullConflictReason is shown when an incoming remote version would replace
// local edits that were never pushed.
const PullConflictReason = "Trying to pull in a file modified remotely in Alma, but the local file " +
	"also seems to have changes (checksum does not match the value in status.json). " +
	"If you continue, the local changes will be overwritten."

// Store is the local working copy. Filenames are slash-separated paths
// relative to the root of fs.
type Store struct {
	fs     afero.Fs
	ledger *status.File
}

// New creates a Store over fs that records synchronized state in ledger.
func New(fs afero.Fs, ledger *status.File) *Store {
	return &Store{fs: fs, ledger: ledger}
}

// DefaultPath returns the path of the default copy of filename.
func DefaultPath(filename string) string {
	return path.Join(DefaultsDir, filename)
}

// Exists reports whether a local file exists for filename.
func (s *Store) Exists(filename string) bool {
	ok, err := afero.Exists(s.fs, filename)
	return err == nil && ok
}

// Content reads filename. A missing file yields empty content.
func (s *Store) Content(filename string) (letter.Content, error) {
	data, err := afero.ReadFile(s.fs, filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return letter.Empty(), nil
		}
		return letter.Content{}, fmt.Errorf("reading %s: %w", filename, err)
	}
	return letter.New(string(data)), nil
}

// IsModified reports whether filename exists, is non-empty and differs from
// the last synchronized checksum.
func (s *Store) IsModified(filename string) (bool, error) {
	c, err := s.Content(filename)
	if err != nil {
		return false, err
	}
	if c.IsEmpty() {
		return false, nil
	}
	return c.Checksum() != s.ledger.Value(filename, status.Checksum), nil
}

// Store writes content to filename and records checksum and stamp in the
// ledger. When the local file holds edits that differ both from the ledger
// and from content, resolver decides whether to overwrite. It returns false
// when the write was declined.
func (s *Store) Store(ctx context.Context, filename string, content letter.Content, stamp string, resolver conflict.Resolver) (bool, error) {
	local, err := s.Content(filename)
	if err != nil {
		return false, err
	}

	if s.diverged(filename, local) && !local.Equal(content) {
		decision, err := resolver.Resolve(ctx, conflict.Conflict{
			Filename: filename,
			Local:    local,
			Remote:   content,
			Reason:   PullConflictReason,
		})
		if err != nil {
			return false, err
		}
		if decision != conflict.Accept {
			return false, nil
		}
	}

	if err := s.write(filename, content); err != nil {
		return false, err
	}

	err = s.ledger.Update(filename, func(e *status.Entry) error {
		e.Checksum = content.Checksum()
		e.Modified = stamp
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// StoreDefault overwrites the default copy of filename and records its
// checksum. Default copies are never edited by hand, so there is no
// conflict check.
func (s *Store) StoreDefault(filename string, content letter.Content) error {
	if err := s.write(DefaultPath(filename), content); err != nil {
		return err
	}
	return s.ledger.Set(filename, status.DefaultChecksum, content.Checksum())
}

// Glob returns the files matching a doublestar pattern, sorted.
func (s *Store) Glob(pattern string) ([]string, error) {
	matches, err := doublestar.Glob(afero.NewIOFS(s.fs), pattern)
	if err != nil {
		return nil, fmt.Errorf("matching %s: %w", pattern, err)
	}
	files := matches[:0]
	for _, m := range matches {
		if isDir, err := afero.IsDir(s.fs, m); err == nil && !isDir {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *Store) diverged(filename string, local letter.Content) bool {
	if local.IsEmpty() {
		return false
	}
	return local.Checksum() != s.ledger.Value(filename, status.Checksum)
}

func (s *Store) write(filename string, content letter.Content) error {
	if dir := path.Dir(filename); dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(s.fs, filename, []byte(content.Text()), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	return nil
}
