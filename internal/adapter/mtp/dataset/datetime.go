package dataset

import (
	"fmt"
	"strings"
	"time"
)

// dateTimeLayout is the ISO 8601 basic form used by MTP: YYYYMMDDThhmmss.
const dateTimeLayout = "20060102T150405"

// FormatDateTime renders t as an MTP DateTime string in UTC. The zero time
// becomes the empty string.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeLayout)
}

// ParseDateTime parses an MTP DateTime string. Tenths of a second
// (".s") and a trailing "Z" or "+hhmm"/"-hhmm" offset are accepted; a string
// without a zone is taken as UTC. The empty string yields the zero time.
func ParseDateTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if len(s) < len(dateTimeLayout) {
		return time.Time{}, fmt.Errorf("invalid MTP datetime %q", s)
	}

	base, rest := s[:len(dateTimeLayout)], s[len(dateTimeLayout):]

	var tenths int
	if strings.HasPrefix(rest, ".") {
		if len(rest) < 2 || rest[1] < '0' || rest[1] > '9' {
			return time.Time{}, fmt.Errorf("invalid MTP datetime %q", s)
		}
		tenths = int(rest[1] - '0')
		rest = rest[2:]
	}

	loc := time.UTC
	switch {
	case rest == "" || rest == "Z":
	case len(rest) == 5 && (rest[0] == '+' || rest[0] == '-'):
		off, err := time.Parse("-0700", rest)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid MTP datetime zone %q: %w", rest, err)
		}
		_, secs := off.Zone()
		loc = time.FixedZone("", secs)
	default:
		return time.Time{}, fmt.Errorf("invalid MTP datetime %q", s)
	}

	t, err := time.ParseInLocation(dateTimeLayout, base, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid MTP datetime %q: %w", s, err)
	}
	return t.Add(time.Duration(tenths) * 100 * time.Millisecond), nil
}
