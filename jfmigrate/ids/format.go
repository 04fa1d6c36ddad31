// Package ids recomputes Jellyfin's content-addressed item identifiers after
// a path migration and maintains the mapping from old to new identifiers in
// every textual representation the application stores.
package ids

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// AncestorLen is the number of leading compact-form characters kept for the
// truncated identifier representation used in hierarchy/ancestor lookups.
const AncestorLen = 16

// Format names one of the identifier representations found in the database.
type Format string

const (
	// FormatBinary is the raw 16-byte identifier, stored in BLOB columns.
	FormatBinary Format = "bin"
	// FormatCompact is lowercase hex with no separators.
	FormatCompact Format = "str"
	// FormatDashed is hex grouped 8-4-4-4-12 with hyphens.
	FormatDashed Format = "str-dash"
	// FormatAncestor is the compact form truncated to AncestorLen characters.
	FormatAncestor Format = "ancestor-str"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// DotNetMD5 reproduces Jellyfin's identifier hash: the input string encoded
// as UTF-16 little-endian (the .NET Encoding.Unicode convention) and run
// through MD5. This is a pinned compatibility constant, not a design choice;
// the server derives item GUIDs exactly this way from type + path.
func DotNetMD5(s string) []byte {
	encoded, err := utf16le.NewEncoder().String(s)
	if err != nil {
		// UTF-16 can represent any valid Go string; an error here means the
		// input was not valid UTF-8 to begin with. Hash the raw bytes so the
		// result is at least deterministic.
		encoded = s
	}
	sum := md5.Sum([]byte(encoded))
	return sum[:]
}

// Compact converts a raw 16-byte identifier to its compact hex form.
func Compact(bin []byte) string {
	return hex.EncodeToString(bin)
}

// Binary converts a compact identifier back to its raw bytes.
func Binary(compact string) ([]byte, error) {
	b, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("invalid compact identifier %q: %w", compact, err)
	}
	return b, nil
}

// Dashed converts a compact identifier to the canonical 8-4-4-4-12 display
// form. uuid.Parse accepts the undashed 32-character form directly.
func Dashed(compact string) (string, error) {
	u, err := uuid.Parse(compact)
	if err != nil {
		return "", fmt.Errorf("invalid identifier %q: %w", compact, err)
	}
	return u.String(), nil
}

// Undashed strips the hyphens from a dashed identifier.
func Undashed(dashed string) (string, error) {
	u, err := uuid.Parse(dashed)
	if err != nil {
		return "", fmt.Errorf("invalid dashed identifier %q: %w", dashed, err)
	}
	return hex.EncodeToString(u[:]), nil
}

// Ancestor truncates a compact identifier to the ancestor lookup form.
func Ancestor(compact string) string {
	if len(compact) <= AncestorLen {
		return compact
	}
	return compact[:AncestorLen]
}
