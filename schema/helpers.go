package schema

import (
	"strings"
	"time"
)

// ToMillis converts a time to unix milliseconds, which is how every backend stores time.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts unix milliseconds back to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// OptionalMillis converts an optional time to optional milliseconds.
func OptionalMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// OptionalTime converts optional milliseconds to an optional time.
func OptionalTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := FromMillis(*ms)
	return &t
}

// TruncateName shortens s to maxWidth runes, marking the cut with "...".
func TruncateName(s string, maxWidth int) string {
	r := []rune(s)
	if maxWidth <= 3 || len(r) <= maxWidth {
		return s
	}
	return string(r[:maxWidth-3]) + "..."
}

// NormalizeKey lowercases and trims user-supplied enum values.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
