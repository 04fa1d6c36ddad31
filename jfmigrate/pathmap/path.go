package pathmap

import "strings"

// The migrator deals with paths from at least two operating systems at once,
// usually Windows paths stored inside a database that is being rewritten on
// Linux. filepath would interpret those with the conventions of the host OS,
// so all path handling here uses a permissive grammar instead: both "/" and
// "\" separate segments, and any string is a valid path.

// splitPath parses s into segments. Rooted paths keep a leading empty
// segment so that joining reproduces the root ("/a/b" -> ["", "a", "b"]).
// Trailing separators are dropped.
func splitPath(s string) []string {
	normalized := strings.ReplaceAll(s, "\\", "/")
	segs := strings.Split(normalized, "/")
	for len(segs) > 1 && segs[len(segs)-1] == "" {
		segs = segs[:len(segs)-1]
	}
	return segs
}

// joinPath re-serializes segments using the configured output separator.
func joinPath(segs []string, slash string) string {
	if len(segs) == 1 && segs[0] == "" {
		// Bare root.
		return slash
	}
	return strings.Join(segs, slash)
}

// hasSegmentPrefix reports whether path is equal to or nested under prefix,
// comparing whole segments. A relative path never matches a rooted prefix
// because the leading empty segment of the rooted form has to match too.
func hasSegmentPrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

// realSegments counts the non-empty segments of a parsed path. Used by the
// missed-path heuristic: single-word strings are almost never paths.
func realSegments(segs []string) int {
	n := 0
	for _, s := range segs {
		if s != "" {
			n++
		}
	}
	return n
}
