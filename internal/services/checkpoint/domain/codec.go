package domain

import (
	"strconv"
	"strings"
	"time"

	perr "moviesync/internal/platform/errors"
)

// CursorLayout is fixed width UTC with microseconds, so stored cursors order
// correctly as plain strings
const CursorLayout = "2006-01-02T15:04:05.000000Z07:00"

// record field names
const (
	FieldCursor     = "cursor"
	FieldLocked     = "locked"
	FieldOwner      = "owner"
	FieldLeaseUntil = "lease_until"
)

var cursorLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// FormatCursor renders t in CursorLayout
func FormatCursor(t time.Time) string { return t.UTC().Format(CursorLayout) }

// ParseCursor accepts RFC3339 (with or without zone or T) and plain dates; empty is Epoch
func ParseCursor(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Epoch, nil
	}
	for _, l := range cursorLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, perr.Newf(perr.ErrorCodeState, "checkpoint: unparsable cursor %q", s)
}

// ParseFlag accepts the boolean spellings older writers used (true, True, 1, yes)
func ParseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "t", "y":
		return true, nil
	case "false", "0", "no", "f", "n", "":
		return false, nil
	}
	return false, perr.Newf(perr.ErrorCodeState, "checkpoint: unparsable flag %q", s)
}

// FormatMillis renders a lease deadline as unix ms; zero is "0"
func FormatMillis(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseMillis is the inverse of FormatMillis
func ParseMillis(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, perr.Newf(perr.ErrorCodeState, "checkpoint: unparsable lease deadline %q", s)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Encode renders cp as the string fields of a stored record
func Encode(cp Checkpoint) map[string]string {
	return map[string]string{
		FieldCursor:     FormatCursor(cp.Cursor),
		FieldLocked:     strconv.FormatBool(cp.Locked),
		FieldOwner:      cp.Owner,
		FieldLeaseUntil: FormatMillis(cp.LeaseUntil),
	}
}

// Decode parses a stored record; an empty map is Initial()
func Decode(m map[string]string) (Checkpoint, error) {
	if len(m) == 0 {
		return Initial(), nil
	}
	var (
		cp  Checkpoint
		err error
	)
	if cp.Cursor, err = ParseCursor(m[FieldCursor]); err != nil {
		return Checkpoint{}, err
	}
	if cp.Locked, err = ParseFlag(m[FieldLocked]); err != nil {
		return Checkpoint{}, err
	}
	if cp.LeaseUntil, err = ParseMillis(m[FieldLeaseUntil]); err != nil {
		return Checkpoint{}, err
	}
	cp.Owner = m[FieldOwner]
	return cp, nil
}
