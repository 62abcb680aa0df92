package domain

import (
	"fmt"
	"time"
)

// EntityType tags every record in the shared table. The tag is the
// prefix half of a composite key, so values must never contain the
// key separator.
type EntityType string

const (
	EntityTypeRun         EntityType = "TEST"
	EntityTypeMarker      EntityType = "MARKER"
	EntityTypeProject     EntityType = "PROJECT"
	EntityTypeEnvironment EntityType = "TEST_ENV"

	// EntityTypeUnknown is produced when decoding a legacy key that
	// carries no separator.
	EntityTypeUnknown EntityType = ""
)

type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusPass    RunStatus = "PASS"
	RunStatusFailed  RunStatus = "FAILED"

	// RunStatusUnknown is a read-side value for markers without runs.
	// It is never persisted.
	RunStatusUnknown RunStatus = "UNKNOWN"
)

func (s RunStatus) Terminal() bool {
	return s == RunStatusPass || s == RunStatusFailed
}

// TimeFormat is the canonical record timestamp layout. Lexical order
// of formatted values matches chronological order, which the store's
// creation-time index relies on.
const TimeFormat = "2006-01-02T15:04:05Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

func ParseTime(value string) (time.Time, error) {
	t, err := time.Parse(TimeFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}
