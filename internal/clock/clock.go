// Package clock renders dates and timestamps in the ledger's fixed
// UTC+5:30 zone so output is identical regardless of the host timezone.
package clock

import (
	"fmt"
	"time"
)

// Zone is the fixed offset every stored date and timestamp is expressed in.
var Zone = time.FixedZone("UTC+05:30", 5*3600+30*60)

const (
	dateLayout      = "02/01/2006"
	timestampLayout = "02/01/2006 15:04:05"
)

// Now returns the current instant shifted into the fixed zone.
func Now() time.Time {
	return time.Now().In(Zone)
}

// FormatDate renders t as a zero-padded DD/MM/YYYY string in the fixed zone.
func FormatDate(t time.Time) string {
	return t.In(Zone).Format(dateLayout)
}

// Timestamp renders t as DD/MM/YYYY HH:MM:SS in the fixed zone.
func Timestamp(t time.Time) string {
	return t.In(Zone).Format(timestampLayout)
}

// RenderDate builds the canonical DD/MM/YYYY string from explicit components.
// Two-digit years are taken to mean the 2000s.
func RenderDate(day, month, year int) string {
	if year < 100 {
		year += 2000
	}
	return fmt.Sprintf("%02d/%02d/%04d", day, month, year)
}

// ParseDate parses a canonical DD/MM/YYYY string into a time in the fixed zone.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, Zone)
}

// ParseTimestamp parses a canonical DD/MM/YYYY HH:MM:SS string.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, s, Zone)
}
