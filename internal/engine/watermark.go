package engine

import "time"

// FormatWatermark renders a change time in the canonical persisted form:
// ISO-8601 UTC, Z-suffixed. Fractional seconds are preserved so the cursor
// can advance past records with sub-second change times.
func FormatWatermark(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseWatermark parses a persisted watermark string.
func ParseWatermark(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
