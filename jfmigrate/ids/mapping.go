package ids

// Mapping holds the old -> new identifier substitutions in all four
// representations. The four maps describe the same logical set of
// identifiers; the non-binary ones are derived from Binary by pure
// reformatting. A Mapping is read-only after construction and safe to share
// across workers.
type Mapping struct {
	// Binary maps raw 16-byte identifiers, keyed by their byte string.
	Binary map[string]string
	// Compact maps lowercase undashed hex identifiers.
	Compact map[string]string
	// Dashed maps 8-4-4-4-12 formatted identifiers.
	Dashed map[string]string
	// Ancestor maps truncated identifiers.
	Ancestor map[string]string
}

// NewMapping derives all representations from a binary old -> new map.
func NewMapping(binary map[string]string) *Mapping {
	m := &Mapping{
		Binary:   binary,
		Compact:  make(map[string]string, len(binary)),
		Dashed:   make(map[string]string, len(binary)),
		Ancestor: make(map[string]string, len(binary)),
	}
	for oldBin, newBin := range binary {
		oldCompact := Compact([]byte(oldBin))
		newCompact := Compact([]byte(newBin))
		m.Compact[oldCompact] = newCompact

		// Compact identifiers are always valid hex, so Dashed cannot fail.
		oldDashed, _ := Dashed(oldCompact)
		newDashed, _ := Dashed(newCompact)
		m.Dashed[oldDashed] = newDashed

		m.Ancestor[Ancestor(oldCompact)] = Ancestor(newCompact)
	}
	return m
}

// ByFormat returns the map for one representation.
func (m *Mapping) ByFormat(f Format) map[string]string {
	switch f {
	case FormatBinary:
		return m.Binary
	case FormatCompact:
		return m.Compact
	case FormatDashed:
		return m.Dashed
	case FormatAncestor:
		return m.Ancestor
	default:
		return nil
	}
}

// Len returns the number of identifiers that changed.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Binary)
}

// PathKeys merges the textual representations into one lookup table for the
// identifier-in-path pass. File and folder names may carry any of the three
// string forms, so all of them are candidates.
func (m *Mapping) PathKeys() map[string]string {
	out := make(map[string]string, len(m.Compact)+len(m.Dashed)+len(m.Ancestor))
	for k, v := range m.Ancestor {
		out[k] = v
	}
	for k, v := range m.Dashed {
		out[k] = v
	}
	for k, v := range m.Compact {
		out[k] = v
	}
	return out
}
