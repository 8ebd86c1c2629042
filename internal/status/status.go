// Package status persists the ledger of last-synchronized letter state
// (status.json). It stores fingerprints and remote stamps only, never content.
package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/spf13/afero"

	"github.com/scriptotek/slipsomat/internal/letter"
)

const DefaultFile = "status.json"

// Version of the status file format.
const Version = 1

// ErrCorrupt is returned by Load when the status file cannot be parsed.
var ErrCorrupt = errors.New("corrupt status file")

// Property names a field of a ledger entry.
type Property string

const (
	Checksum        Property = "checksum"
	DefaultChecksum Property = "default_checksum"
	Modified        Property = "modified"
)

// Entry records the last synchronized state of one letter.
type Entry struct {
	Checksum        string `json:"checksum,omitempty"`
	DefaultChecksum string `json:"default_checksum,omitempty"`
	Modified        string `json:"modified,omitempty"`
}

func (e Entry) get(p Property) (string, error) {
	switch p {
	case Checksum:
		return e.Checksum, nil
	case DefaultChecksum:
		return e.DefaultChecksum, nil
	case Modified:
		return e.Modified, nil
	}
	return "", fmt.Errorf("unknown status property: %s", p)
}

func (e *Entry) set(p Property, value string) error {
	switch p {
	case Checksum:
		e.Checksum = value
	case DefaultChecksum:
		e.DefaultChecksum = value
	case Modified:
		e.Modified = value
	default:
		return fmt.Errorf("unknown status property: %s", p)
	}
	return nil
}

// document is the on-disk layout. Fields are declared in key order so the
// encoded output has sorted keys at every level.
type document struct {
	Letters map[string]Entry `json:"letters"`
	Version int              `json:"version"`
}

// File is the in-memory ledger bound to its path. Every mutation is written
// through to disk before it returns.
type File struct {
	fs      afero.Fs
	path    string
	letters map[string]Entry
}

// New returns an empty ledger that will be saved to path.
func New(fs afero.Fs, path string) *File {
	return &File{
		fs:      fs,
		path:    path,
		letters: make(map[string]Entry),
	}
}

// Load reads the status file at path. A missing file yields an empty
// ledger; an unreadable or unparsable file is an error wrapping ErrCorrupt.
func Load(fs afero.Fs, path string) (*File, error) {
	f := New(fs, path)

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("reading status file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorrupt, path, err)
	}
	if doc.Version > Version {
		return nil, fmt.Errorf("%w %s: unsupported version %d", ErrCorrupt, path, doc.Version)
	}

	if doc.Letters != nil {
		f.letters = doc.Letters
	}
	return f, nil
}

// Path returns the file the ledger is persisted to.
func (f *File) Path() string { return f.path }

// Get returns the entry for filename, if any.
func (f *File) Get(filename string) (Entry, bool) {
	e, ok := f.letters[filename]
	return e, ok
}

// Value returns one property of filename's entry, or "" if there is none.
func (f *File) Value(filename string, p Property) string {
	v, _ := f.letters[filename].get(p)
	return v
}

// Set stores one property for filename and persists the ledger.
func (f *File) Set(filename string, p Property, value string) error {
	return f.Update(filename, func(e *Entry) error {
		return e.set(p, value)
	})
}

// Update applies fn to filename's entry (created if missing) and persists
// the ledger once. If saving fails the in-memory change is rolled back.
func (f *File) Update(filename string, fn func(*Entry) error) error {
	prev, existed := f.letters[filename]
	e := prev
	if err := fn(&e); err != nil {
		return err
	}
	f.letters[filename] = e

	if err := f.Save(); err != nil {
		if existed {
			f.letters[filename] = prev
		} else {
			delete(f.letters, filename)
		}
		return err
	}
	return nil
}

// Filenames returns every tracked filename in sorted order.
func (f *File) Filenames() []string {
	names := make([]string, 0, len(f.letters))
	for name := range f.letters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of tracked letters.
func (f *File) Len() int { return len(f.letters) }

// Save writes the ledger atomically (temp file + rename).
func (f *File) Save() error {
	data, err := Marshal(f.letters)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := f.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating status directory: %w", err)
	}

	tmp, err := afero.TempFile(f.fs, dir, ".status-*.json")
	if err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = f.fs.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	if err := f.fs.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}

var trailingSpace = regexp.MustCompile(`(?m)[ \t]+$`)

// Marshal encodes letters in the stable on-disk form: sorted keys, two-space
// indent, unix line endings, no trailing whitespace.
func Marshal(letters map[string]Entry) ([]byte, error) {
	if letters == nil {
		letters = map[string]Entry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Letters: letters, Version: Version}); err != nil {
		return nil, fmt.Errorf("encoding status file: %w", err)
	}

	out := trailingSpace.ReplaceAllString(buf.String(), "")
	return []byte(letter.Normalize(out)), nil
}
