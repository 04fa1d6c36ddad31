package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// removeEmptyDirs deletes empty directories under root, repeating until a
// sweep removes nothing so that parents emptied by a previous sweep go too.
func removeEmptyDirs(root string) (int, error) {
	total := 0
	for {
		removed, err := sweepEmptyDirs(root)
		if err != nil {
			return total, err
		}
		if removed == 0 {
			return total, nil
		}
		total += removed
	}
}

func sweepEmptyDirs(root string) (int, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	// Deepest first so a chain of nested empty folders collapses in one
	// sweep where possible.
	sort.Slice(dirs, func(a, b int) bool { return len(dirs[a]) > len(dirs[b]) })

	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		if len(entries) == 0 {
			if err := os.Remove(dir); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
