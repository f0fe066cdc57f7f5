// Package recur is the recurring-meeting engine: it expands an activity's
// recurrence rule into concrete occurrences and locates the next alert
// instant. The listing API and the cron alert evaluator both go through this
// one step rule, so the two call sites cannot disagree on occurrence times.
package recur

import (
	"errors"
	"fmt"
	"time"

	"meetsched/internal/model"
	"meetsched/internal/window"
)

// maxOccurrencesPerActivity caps the expansion walk so a pathological rule
// cannot turn a request handler into an unbounded loop.
const maxOccurrencesPerActivity = 5000

var (
	// ErrMalformedRecurrence marks a rule missing its discriminator
	// (weekday for weekly, day-of-month for monthly) or its end date.
	// Such rules are rejected at write time; the engine still fails fast
	// on them rather than walking forever.
	ErrMalformedRecurrence = errors.New("recur: malformed recurrence rule")

	// ErrExpansionCapped is returned when a walk exceeds the occurrence cap.
	ErrExpansionCapped = fmt.Errorf("recur: more than %d occurrences", maxOccurrencesPerActivity)
)

var weekdayIndex = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// Validate checks that a recurrence rule can be walked to termination.
func Validate(r model.Recurrence) error {
	if r.Pattern == model.PatternNone {
		return nil
	}
	if r.EndDate == nil {
		return fmt.Errorf("%w: pattern %q without end date", ErrMalformedRecurrence, r.Pattern)
	}
	if r.Interval < 0 {
		return fmt.Errorf("%w: negative interval %d", ErrMalformedRecurrence, r.Interval)
	}
	switch r.Pattern {
	case model.PatternDaily:
		return nil
	case model.PatternWeekly:
		if _, ok := weekdayIndex[r.WeeklyDay]; !ok {
			return fmt.Errorf("%w: weekly pattern with weekday %q", ErrMalformedRecurrence, r.WeeklyDay)
		}
		return nil
	case model.PatternMonthly:
		if r.MonthlyDayOfMonth < 1 || r.MonthlyDayOfMonth > 31 {
			return fmt.Errorf("%w: monthly pattern with day %d", ErrMalformedRecurrence, r.MonthlyDayOfMonth)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown pattern %q", ErrMalformedRecurrence, r.Pattern)
	}
}

// Expand generates the activity's occurrences whose start falls inside win,
// ordered by start ascending. The walk always runs from the activity's start
// to its recurrence end date; the window only filters what is returned. The
// result is fully determined by the inputs.
func Expand(act model.Activity, win window.Window) ([]model.Occurrence, error) {
	if !act.Recurrence.IsRecurring() {
		if !win.Contains(act.StartAt) {
			return nil, nil
		}
		return []model.Occurrence{occurrenceAt(act, act.StartAt)}, nil
	}

	if err := Validate(act.Recurrence); err != nil {
		return nil, err
	}

	recurEnd := window.EndOfDay(*act.Recurrence.EndDate)

	var out []model.Occurrence
	cur := firstCursor(act)
	for i := 0; !cur.After(recurEnd); i++ {
		if i >= maxOccurrencesPerActivity {
			return nil, fmt.Errorf("%w: activity %s", ErrExpansionCapped, act.ID)
		}
		if win.Contains(cur) {
			out = append(out, occurrenceAt(act, cur))
		}
		next := step(cur, act.Recurrence)
		if !next.After(cur) {
			return nil, fmt.Errorf("%w: step does not advance from %s", ErrMalformedRecurrence, cur.Format(time.RFC3339))
		}
		cur = next
	}
	return out, nil
}

// AlertTime walks the recurrence from the activity's start, skipping
// occurrences that are already in the past, and returns the alert instant for
// the first occurrence the loop did not skip: its start minus the configured
// lead time. ok is false when the activity carries no usable alert
// configuration.
func AlertTime(act model.Activity, now time.Time) (at time.Time, ok bool, err error) {
	if !act.HasAlert() {
		return time.Time{}, false, nil
	}
	lead := LeadDuration(act.AlertLeadTime, act.AlertUnit)

	cur := act.StartAt
	if act.Recurrence.IsRecurring() {
		if err := Validate(act.Recurrence); err != nil {
			return time.Time{}, false, err
		}
		cur = firstCursor(act)
		recurEnd := *act.Recurrence.EndDate
		for i := 0; cur.Before(now) && cur.Before(recurEnd); i++ {
			if i >= maxOccurrencesPerActivity {
				return time.Time{}, false, fmt.Errorf("%w: activity %s", ErrExpansionCapped, act.ID)
			}
			next := step(cur, act.Recurrence)
			if !next.After(cur) {
				return time.Time{}, false, fmt.Errorf("%w: step does not advance from %s", ErrMalformedRecurrence, cur.Format(time.RFC3339))
			}
			cur = next
		}
	}
	return cur.Add(-lead), true, nil
}

// LeadDuration converts a lead time + unit into a duration. Unknown units
// yield zero.
func LeadDuration(lead int, unit model.AlertUnit) time.Duration {
	switch unit {
	case model.AlertUnitMinutes:
		return time.Duration(lead) * time.Minute
	case model.AlertUnitHours:
		return time.Duration(lead) * time.Hour
	default:
		return 0
	}
}

func occurrenceAt(act model.Activity, start time.Time) model.Occurrence {
	return model.Occurrence{
		ActivityID:  act.ID,
		Title:       act.Title,
		Description: act.Agenda,
		AllDay:      act.AllDay,
		Start:       start,
		End:         start.Add(act.Duration()),
		Status:      act.StatusName,
	}
}

// firstCursor returns the start of the first repetition. For a weekly rule
// the canonical start may fall on a different weekday than the rule targets;
// the walk then begins on the first target weekday at or after the start, so
// every emitted occurrence lands on the rule's weekday. Both Expand and
// AlertTime go through this, keeping the listing and alerting call sites in
// exact agreement.
func firstCursor(act model.Activity) time.Time {
	cur := act.StartAt
	r := act.Recurrence
	if r.Pattern != model.PatternWeekly {
		return cur
	}
	target, ok := weekdayIndex[r.WeeklyDay]
	if !ok {
		return cur
	}
	delta := (target - int(cur.Weekday()) + 7) % 7
	return cur.AddDate(0, 0, delta)
}

// step advances the cursor one repetition forward.
//
// Daily and monthly advance interval+1 units while weekly advances interval
// weeks; the asymmetry is inherited from the stored data's convention and is
// kept deliberately.
func step(cur time.Time, r model.Recurrence) time.Time {
	switch r.Pattern {
	case model.PatternDaily:
		return cur.AddDate(0, 0, r.Interval+1)

	case model.PatternWeekly:
		cur = cur.AddDate(0, 0, 7*r.Interval)
		target, ok := weekdayIndex[r.WeeklyDay]
		if !ok {
			return cur
		}
		// Roll forward to the target weekday; if the cursor already sits on
		// it, move a full week so the same day is never emitted twice.
		delta := target - int(cur.Weekday())
		if delta <= 0 {
			delta += 7
		}
		return cur.AddDate(0, 0, delta)

	case model.PatternMonthly:
		cur = addMonthsClamped(cur, r.Interval+1)
		target := cur.Month()
		cur = withDayOfMonth(cur, r.MonthlyDayOfMonth)
		if cur.Month() != target {
			// Setting the day overflowed into the next month, so the day
			// does not exist there (e.g. day 31 in February). Skip ahead one
			// month and set the day again.
			cur = withDayOfMonth(addMonthsClamped(cur, 1), r.MonthlyDayOfMonth)
		}
		return cur
	}
	return cur
}

// addMonthsClamped adds n calendar months, clamping the day to the target
// month's last day (Jan 31 + 1 month = Feb 28/29, never Mar 2/3).
func addMonthsClamped(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	day := t.Day()
	if last := daysInMonth(first); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// withDayOfMonth sets the day-of-month, normalizing overflow forward
// (Feb 31 becomes Mar 3) so the caller can detect the month change.
func withDayOfMonth(t time.Time, day int) time.Time {
	return time.Date(t.Year(), t.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
