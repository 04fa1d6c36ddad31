// Package pathmap implements the two rewriting primitives of the migration
// engine: prefix-based path replacement and identifier-in-path replacement.
// Both walk arbitrarily nested JSON-like values (maps, slices, strings) and
// rewrite every string leaf that parses as a path.
package pathmap

import (
	"log/slog"
	"strings"
)

// Pair maps one source path prefix to its target prefix.
type Pair struct {
	Source string
	Target string
}

// Mapping is an ordered list of prefix replacements. Order matters: the
// first matching prefix wins, so nested prefixes must be listed before
// their parents. A Mapping is read-only once built and safe to share
// across workers.
type Mapping struct {
	Pairs []Pair

	// Slash is the separator used to re-serialize rewritten paths.
	// Defaults to "/".
	Slash string

	// SuppressWarnings disables the debug log for path-like strings that
	// matched no prefix.
	SuppressWarnings bool

	// parsed source prefixes, same order as Pairs
	sources [][]string
	targets [][]string
}

// NewMapping builds a Mapping with the given output separator.
func NewMapping(pairs []Pair, slash string) *Mapping {
	m := &Mapping{Pairs: pairs, Slash: slash}
	m.compile()
	return m
}

func (m *Mapping) compile() {
	m.sources = make([][]string, len(m.Pairs))
	m.targets = make([][]string, len(m.Pairs))
	for i, p := range m.Pairs {
		m.sources[i] = splitPath(p.Source)
		m.targets[i] = splitPath(p.Target)
	}
}

func (m *Mapping) slash() string {
	if m.Slash == "" {
		return "/"
	}
	return m.Slash
}

// Inverse returns a new Mapping with every pair reversed. The pair order is
// preserved, which keeps nested-before-parent precedence intact as long as
// the original mapping was ordered that way on both sides.
func (m *Mapping) Inverse() *Mapping {
	pairs := make([]Pair, len(m.Pairs))
	for i, p := range m.Pairs {
		pairs[i] = Pair{Source: p.Target, Target: p.Source}
	}
	inv := NewMapping(pairs, m.slash())
	inv.SuppressWarnings = m.SuppressWarnings
	return inv
}

// Stats counts leaf strings touched by a replacement walk.
type Stats struct {
	// Modified is the number of leaves rewritten.
	Modified int
	// Unmatched is the number of leaves that matched no mapping entry.
	Unmatched int
}

// Add merges other into s.
func (s *Stats) Add(other Stats) {
	s.Modified += other.Modified
	s.Unmatched += other.Unmatched
}

// Replace walks v and rewrites every string leaf whose path form is equal to
// or nested under one of the mapping's source prefixes. Maps and slices are
// rewritten in place and returned; all other types are returned unchanged.
// The mapping itself is never mutated.
func Replace(v any, m *Mapping) (any, Stats) {
	var stats Stats
	out := replaceValue(v, m, &stats)
	return out, stats
}

func replaceValue(v any, m *Mapping, stats *Stats) any {
	switch val := v.(type) {
	case map[string]any:
		for k, e := range val {
			val[k] = replaceValue(e, m, stats)
		}
		return val
	case []any:
		for i, e := range val {
			val[i] = replaceValue(e, m, stats)
		}
		return val
	case string:
		out, ok := ReplacePath(val, m)
		if ok {
			stats.Modified++
			return out
		}
		stats.Unmatched++
		warnUnmatched(val, m)
		return val
	default:
		return v
	}
}

// ReplacePath rewrites a single path string. It reports whether any prefix
// matched; on a miss the input is returned byte-identical.
func ReplacePath(s string, m *Mapping) (string, bool) {
	if m.sources == nil {
		m.compile()
	}
	segs := splitPath(s)
	for i, src := range m.sources {
		if !hasSegmentPrefix(segs, src) {
			continue
		}
		out := make([]string, 0, len(m.targets[i])+len(segs)-len(src))
		out = append(out, m.targets[i]...)
		out = append(out, segs[len(src):]...)
		return joinPath(out, m.slash()), true
	}
	return s, false
}

// warnUnmatched emits the missed-path hint for strings that plausibly denote
// a path. It is advisory only: single-word strings and URLs are excluded to
// keep the noise down, and the whole signal can be suppressed per mapping.
func warnUnmatched(s string, m *Mapping) {
	if m.SuppressWarnings {
		return
	}
	if realSegments(splitPath(s)) < 2 {
		return
	}
	if strings.HasPrefix(s, "http:") || strings.HasPrefix(s, "https:") {
		return
	}
	slog.Debug("no mapping entry for presumed path", "path", s)
}
