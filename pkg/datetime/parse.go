// Package datetime parses the two calendar date conventions the system
// accepts at its edges. Stored and rendered dates are always ISO.
package datetime

import (
	"strings"
	"time"
)

// ISO is the canonical storage/rendering layout.
const ISO = "2006-01-02"

// layouts in priority order: ISO first, then the US spreadsheet convention.
var layouts = []string{ISO, "01/02/2006"}

// ParseFlexible parses an ISO (YYYY-MM-DD) or US (MM/DD/YYYY) date string.
// Surrounding whitespace is ignored. Returns false for anything else; never
// panics.
func ParseFlexible(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatISO renders a date in the canonical layout.
func FormatISO(t time.Time) string {
	return t.Format(ISO)
}
