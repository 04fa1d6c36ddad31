// Package timestamps corrects the file creation/modification dates stored in
// the library database after a migration. Jellyfin stores them as ISO-8601
// like text with up to 100-nanosecond (one .NET tick) resolution, implicitly
// UTC; dates that predate the epoch act as a sentinel for "unknown, derive
// from the filesystem".
package timestamps

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	dateLayout    = "2006-01-02 15:04:05"
	dateLayoutT   = "2006-01-02T15:04:05"
	nsPerSecond   = int64(time.Second)
	nsPerTick     = int64(100)
	ticksPerSec   = nsPerSecond / nsPerTick
	fracDigits    = 7 // tick resolution: 7 fractional digits
	subsecPadding = 9 // nanosecond digits
)

// Parse converts a stored Jellyfin date string into nanoseconds since the
// Unix epoch. The fractional part may carry more precision than 100ns and
// may be followed by a timezone marker; both are tolerated, excess precision
// is truncated. Dates before 1970 produce negative values, which the
// reconciler treats as the "unknown" sentinel.
func Parse(s string) (int64, error) {
	base := s
	subseconds := ""
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		base, subseconds = s[:idx], s[idx+1:]
	}

	// The fractional part can carry a timezone suffix ("+00:00" or a
	// trailing letter like Z); Jellyfin is always UTC, so just strip it.
	if idx := strings.Index(subseconds, "+"); idx >= 0 {
		subseconds = subseconds[:idx]
	}
	subseconds = strings.TrimRightFunc(subseconds, unicode.IsLetter)

	frac := int64(0)
	if subseconds != "" {
		padded := subseconds
		if len(padded) < subsecPadding {
			padded += strings.Repeat("0", subsecPadding-len(padded))
		} else {
			padded = padded[:subsecPadding]
		}
		for _, r := range padded {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("invalid fractional seconds in date %q", s)
			}
			frac = frac*10 + int64(r-'0')
		}
		// The codec carries tick resolution; anything finer is noise.
		frac = frac / nsPerTick * nsPerTick
	}

	base = strings.TrimRightFunc(base, unicode.IsLetter)
	var t time.Time
	var err error
	if strings.Contains(base, "T") {
		t, err = time.Parse(dateLayoutT, base)
	} else {
		t, err = time.Parse(dateLayout, base)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.Unix()*nsPerSecond + frac, nil
}

// Format encodes nanoseconds since the epoch back into the stored text
// format: second resolution date, space separator, fractional ticks with
// trailing zeros trimmed, and a Z suffix. Precision below 100ns is
// truncated, matching what the application itself would have written.
func Format(ns int64) string {
	sec := ns / nsPerSecond
	ticks := (ns / nsPerTick) % ticksPerSec

	base := time.Unix(sec, 0).UTC().Format(dateLayout)
	frac := strings.TrimRight(fmt.Sprintf("%0*d", fracDigits, ticks), "0")
	return base + "." + frac + "Z"
}
