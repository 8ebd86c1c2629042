package cli

import (
	"sort"

	"github.com/scriptotek/slipsomat/internal/localstore"
	"github.com/scriptotek/slipsomat/internal/status"
)

// CheckStatus describes the local state of a single letter.
type CheckStatus int

const (
	CheckOK        CheckStatus = iota // File matches the ledger
	CheckModified                     // File differs from the ledger
	CheckMissing                      // In the ledger but no file
	CheckUntracked                    // File exists but no ledger entry
)

// CheckResult holds the outcome of checking one letter.
type CheckResult struct {
	Filename string
	Status   CheckStatus
	Checksum string // ledger checksum (empty if untracked)
	Modified string // remote stamp recorded in the ledger
}

// CheckLetters compares the ledger with the working copy. localFiles lists
// the letter files found on disk; files not in it are judged by the store.
// This is a pure function: it reads state through its arguments, not globals.
func CheckLetters(ledger *status.File, local *localstore.Store, localFiles []string) ([]CheckResult, error) {
	tracked := ledger.Filenames()
	results := make([]CheckResult, 0, len(tracked))
	seen := make(map[string]bool, len(tracked))

	for _, name := range tracked {
		seen[name] = true
		entry, _ := ledger.Get(name)
		if entry.Checksum == "" && !local.Exists(name) {
			// Only the default copy has been pulled.
			continue
		}
		res := CheckResult{Filename: name, Checksum: entry.Checksum, Modified: entry.Modified}

		switch modified, err := local.IsModified(name); {
		case err != nil:
			return nil, err
		case !local.Exists(name):
			res.Status = CheckMissing
		case modified:
			res.Status = CheckModified
		default:
			res.Status = CheckOK
		}
		results = append(results, res)
	}

	for _, name := range localFiles {
		if !seen[name] {
			results = append(results, CheckResult{Filename: name, Status: CheckUntracked})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Filename < results[j].Filename
	})
	return results, nil
}
