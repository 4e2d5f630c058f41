package sandbox

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Snapshot is a point-in-time set of directory entries, mapping entry name
// to whether the entry is a regular file. Hidden entries (leading '.') are
// excluded at capture time.
type Snapshot map[string]bool

// TakeSnapshot captures the entry set of dir in a single pass
func TakeSnapshot(dir string) (Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot of %s: %w", dir, err)
	}

	snap := make(Snapshot, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		snap[entry.Name()] = entry.Type().IsRegular()
	}

	return snap, nil
}

// DiffSnapshots returns the names present in after but not before, keeping
// only regular files and dropping names matched by exclude (may be nil).
// The result is sorted for determinism.
//
// The diff is content-blind: a file present in both snapshots is never
// reported, even if its contents changed in between.
func DiffSnapshots(before, after Snapshot, exclude func(name string) bool) []string {
	names := make([]string, 0, len(after))
	for name, regular := range after {
		if !regular {
			continue
		}
		if _, existed := before[name]; existed {
			continue
		}
		if exclude != nil && exclude(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
