package proposal

import (
	"strings"
	"time"
)

const idTimeFormat = "20060102150405.000000000"

// NewID returns a fresh proposal id. The id embeds a fixed-width UTC
// timestamp with nanosecond precision, so lexicographic order over ids
// equals creation order.
func NewID(now time.Time) string {
	return "DDS-" + now.UTC().Format(idTimeFormat)
}

// NewFixID returns the id for a fix proposal created at now. The fix
// marker is a suffix, not a prefix, so fixes still sort into the global
// creation order.
func NewFixID(now time.Time) string {
	return NewID(now) + "-fix"
}

// IsFixID reports whether id carries the fix suffix.
func IsFixID(id string) bool {
	return strings.HasSuffix(id, "-fix")
}
