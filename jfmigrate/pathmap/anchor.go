package pathmap

import (
	"path/filepath"
	"strings"
)

// Anchor resolves a mapped path to a real location on the host filesystem.
// Paths that still carry a drive letter are returned as-is (they are already
// absolute in their own world); rooted or relative paths are placed under
// root. The result uses host separators since it is handed to the OS.
func Anchor(path, root string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	if hasDrive(normalized) {
		return filepath.FromSlash(normalized)
	}
	normalized = strings.TrimPrefix(normalized, "/")
	return filepath.Join(root, filepath.FromSlash(normalized))
}

func hasDrive(s string) bool {
	if len(s) < 2 || s[1] != ':' {
		return false
	}
	c := s[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
