package model

import (
	"time"

	"github.com/google/uuid"
)

// Pattern enumerates the supported recurrence shapes.
type Pattern string

const (
	PatternNone    Pattern = ""
	PatternDaily   Pattern = "daily"
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
)

// AlertUnit is the unit of an activity's alert lead time.
type AlertUnit string

const (
	AlertUnitMinutes AlertUnit = "min"
	AlertUnitHours   AlertUnit = "h"
)

// Recurrence describes how an activity repeats. It carries no behavior;
// expansion lives in internal/recur.
type Recurrence struct {
	Pattern Pattern

	// Interval is "every N units". Daily and monthly stepping effectively
	// advance Interval+1 units; weekly advances Interval weeks. See
	// internal/recur for the exact rule.
	Interval int

	// WeeklyDay is a lowercase weekday name ("monday".."sunday"),
	// meaningful only when Pattern is weekly.
	WeeklyDay string

	// MonthlyDayOfMonth is 1..31, meaningful only when Pattern is monthly.
	MonthlyDayOfMonth int

	// EndDate bounds generation, inclusive through the end of that UTC day.
	// nil means the activity does not recur.
	EndDate *time.Time
}

// IsRecurring reports whether the rule actually produces repetitions.
// A pattern without an end date is treated as non-recurring, matching the
// write-time constraint that every pattern carries an end date.
func (r Recurrence) IsRecurring() bool {
	return r.Pattern != PatternNone && r.EndDate != nil
}

// Activity is the record consumed by the scheduling core. The core reads it
// and produces occurrences; it never mutates the record.
type Activity struct {
	ID     string
	Title  string
	Agenda string
	AllDay bool

	// StartAt / EndAt are the stored UTC instants of the canonical (first)
	// occurrence.
	StartAt time.Time
	EndAt   time.Time

	Recurrence Recurrence

	StatusName string

	// AlertLeadTime / AlertUnit configure pre-meeting alerting. A zero lead
	// time or empty unit disables alerting for the activity.
	AlertLeadTime int
	AlertUnit     AlertUnit

	WorkspaceID string
	AttendeeIDs []string
	Deleted     bool
}

// Duration returns the canonical occurrence length, preserved across all
// repetitions.
func (a Activity) Duration() time.Duration {
	return a.EndAt.Sub(a.StartAt)
}

// HasAlert reports whether the activity carries a usable alert configuration.
func (a Activity) HasAlert() bool {
	if a.AlertLeadTime <= 0 {
		return false
	}
	return a.AlertUnit == AlertUnitMinutes || a.AlertUnit == AlertUnitHours
}

// Occurrence is one concrete repetition of an activity. Occurrences are
// recomputed on every request and never persisted; identity is
// (ActivityID, Start).
type Occurrence struct {
	ActivityID  string
	Title       string
	Description string
	AllDay      bool

	Start time.Time
	End   time.Time

	Status string
}

// NewID returns a fresh activity identifier.
func NewID() string {
	return uuid.NewString()
}
