package pathmap

import "strings"

// Jellyfin derives file and folder names from item identifiers. A typical
// metadata path looks like
//
//	.../83/83addde992893e93d0572907f8b4cad/poster.jpg
//
// where the containing folder repeats the first byte or two of the
// identifier. When an identifier changes, that shard folder has to change
// with it or the layout invariant breaks.

// isIDSegment reports whether a path segment could be an identifier in any
// of its textual forms: hex digits plus hyphens, nothing else.
func isIDSegment(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && r != '-' {
			return false
		}
	}
	return true
}

// ReplaceIDs walks v like Replace but substitutes identifier substrings that
// appear as path segments or filename stems. ids maps old identifier strings
// to new ones, all in the same textual representation mix produced by the
// derivation step. Misses are expected for the vast majority of leaves and
// are therefore never logged.
func ReplaceIDs(v any, ids map[string]string, slash string) (any, Stats) {
	var stats Stats
	out := replaceIDValue(v, ids, slash, &stats)
	return out, stats
}

func replaceIDValue(v any, ids map[string]string, slash string, stats *Stats) any {
	switch val := v.(type) {
	case map[string]any:
		for k, e := range val {
			val[k] = replaceIDValue(e, ids, slash, stats)
		}
		return val
	case []any:
		for i, e := range val {
			val[i] = replaceIDValue(e, ids, slash, stats)
		}
		return val
	case string:
		out, ok := ReplaceIDPath(val, ids, slash)
		if ok {
			stats.Modified++
			return out
		}
		stats.Unmatched++
		return val
	default:
		return v
	}
}

// ReplaceIDPath rewrites identifier occurrences in a single path string.
//
// The filename stem is checked first: paths like .../<id>.jpg get the cheap
// direct substitution. Otherwise the intermediate segments are scanned
// left to right for a mapped identifier; when one is found and the segment
// before it is a prefix of the old identifier (the shard folder), the shard
// is re-derived as the same-length prefix of the new identifier.
func ReplaceIDPath(s string, ids map[string]string, slash string) (string, bool) {
	if len(ids) == 0 {
		return s, false
	}
	segs := splitPath(s)
	last := len(segs) - 1

	stem, ext := splitStem(segs[last])
	if isIDSegment(stem) {
		if newID, ok := ids[stem]; ok {
			segs[last] = newID + ext
			return joinPath(segs, slash), true
		}
	}

	for i := 0; i < last; i++ {
		if !isIDSegment(segs[i]) {
			continue
		}
		newID, ok := ids[segs[i]]
		if !ok {
			continue
		}
		oldID := segs[i]
		segs[i] = newID
		if i > 0 && segs[i-1] != "" && strings.HasPrefix(oldID, segs[i-1]) && len(segs[i-1]) <= len(newID) {
			segs[i-1] = newID[:len(segs[i-1])]
		}
		return joinPath(segs, slash), true
	}
	return s, false
}

// splitStem splits a filename into stem and extension. A leading dot is part
// of the stem, matching how Jellyfin names its own files.
func splitStem(name string) (string, string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}
