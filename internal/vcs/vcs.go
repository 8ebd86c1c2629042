// Package vcs commits synchronized letters and the status file to the git
// repository enclosing the working copy.
package vcs

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotRepository is returned when no enclosing git repository exists.
var ErrNotRepository = errors.New("not inside a git repository")

// PullMessage, DefaultsMessage and PushMessage are the commit messages used
// after each operation.
func PullMessage(n int) string     { return fmt.Sprintf("Pull %d letters from Alma", n) }
func DefaultsMessage(n int) string { return fmt.Sprintf("Pull %d default letters from Alma", n) }
func PushMessage(n int) string     { return fmt.Sprintf("Push %d letters to Alma", n) }

// Committer stages and commits files below a working directory.
type Committer struct {
	repo *git.Repository
	dir  string
	root string

	name  string
	email string
	now   func() time.Time
}

// Open finds the repository containing dir.
func Open(dir, name, email string) (*Committer, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, abs)
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	return &Committer{
		repo:  repo,
		dir:   abs,
		root:  wt.Filesystem.Root(),
		name:  name,
		email: email,
		now:   time.Now,
	}, nil
}

// Commit stages paths (relative to the working directory) and commits them
// with message. It returns false when nothing was staged.
func (c *Committer) Commit(paths []string, message string) (plumbing.Hash, bool, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("open worktree: %w", err)
	}

	for _, p := range paths {
		rel, err := filepath.Rel(c.root, filepath.Join(c.dir, filepath.FromSlash(p)))
		if err != nil {
			return plumbing.ZeroHash, false, err
		}
		if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
			return plumbing.ZeroHash, false, fmt.Errorf("git add %s: %w", p, err)
		}
	}

	st, err := wt.Status()
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("git status: %w", err)
	}
	if !hasStaged(st) {
		return plumbing.ZeroHash, false, nil
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.name,
			Email: c.email,
			When:  c.now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("git commit: %w", err)
	}
	return hash, true, nil
}

func hasStaged(st git.Status) bool {
	for _, s := range st {
		if s.Staging != git.Unmodified && s.Staging != git.Untracked {
			return true
		}
	}
	return false
}
