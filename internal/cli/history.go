package cli

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
)

// maxHistory bounds the shell history file.
const maxHistory = 10000

// history persists shell input lines.
type history struct {
	fs    afero.Fs
	path  string
	lines []string
}

// loadHistory reads the history file. A missing file gives an empty history.
func loadHistory(fsys afero.Fs, path string) (*history, error) {
	h := &history{fs: fsys, path: path}
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := sc.Text(); strings.TrimSpace(line) != "" {
			h.lines = append(h.lines, line)
		}
	}
	h.lines = trimHistory(h.lines, maxHistory)
	return h, sc.Err()
}

// Lines returns the history, oldest first.
func (h *history) Lines() []string {
	return h.lines
}

// Add appends line and rewrites the file.
func (h *history) Add(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	h.lines = trimHistory(append(h.lines, line), maxHistory)
	var buf bytes.Buffer
	for _, l := range h.lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return afero.WriteFile(h.fs, h.path, buf.Bytes(), 0600)
}

// trimHistory keeps the newest max lines.
func trimHistory(lines []string, max int) []string {
	if len(lines) <= max {
		return lines
	}
	return lines[len(lines)-max:]
}
