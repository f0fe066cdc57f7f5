// Package window translates caller-supplied date filters into the concrete
// UTC bound pair that limits occurrence generation.
package window

import (
	"errors"
	"fmt"
	"time"

	"meetsched/internal/tz"
)

// Filter date selectors accepted by Resolve.
const (
	FilterToday    = "today"
	FilterTomorrow = "tomorrow"
	FilterThisWeek = "this_week"
	FilterPeriod   = "period"
)

var (
	// ErrInvalidDateRange is returned for a period filter whose end date
	// precedes its start date, or whose bounds fail to parse.
	ErrInvalidDateRange = errors.New("window: invalid date range")
	// ErrMissingDateRange is returned for a period filter lacking a bound.
	ErrMissingDateRange = errors.New("window: missing date range")
	// ErrUnknownFilter is returned for an unrecognized date selector.
	ErrUnknownFilter = errors.New("window: unknown date filter")
)

// Window bounds which occurrences a query returns. A zero Start or End means
// that side is unbounded; the zero Window matches everything.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, inclusive on both ends.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// Filter is a caller-supplied date selection. StartDate/EndDate are
// DD-MM-YYYY strings and are consulted only when Date is "period".
type Filter struct {
	Date      string
	StartDate string
	EndDate   string
}

// Resolve turns a filter into concrete UTC day bounds relative to ref
// (normally "now"). An empty filter resolves to the unbounded window; the
// caller still pays the full walk from the activity start to its recurrence
// end either way, since the window only selects which computed occurrences
// are returned.
func Resolve(f Filter, ref time.Time) (Window, error) {
	ref = ref.UTC()

	switch f.Date {
	case "":
		return Window{}, nil
	case FilterToday:
		day := StartOfDay(ref)
		return Window{Start: day, End: EndOfDay(day)}, nil
	case FilterTomorrow:
		day := StartOfDay(ref.AddDate(0, 0, 1))
		return Window{Start: day, End: EndOfDay(day)}, nil
	case FilterThisWeek:
		start := startOfWeek(ref)
		return Window{Start: start, End: EndOfDay(start.AddDate(0, 0, 6))}, nil
	case FilterPeriod:
		return resolvePeriod(f)
	default:
		return Window{}, fmt.Errorf("%w: %q", ErrUnknownFilter, f.Date)
	}
}

func resolvePeriod(f Filter) (Window, error) {
	if f.StartDate == "" || f.EndDate == "" {
		return Window{}, ErrMissingDateRange
	}
	start, err := time.ParseInLocation(tz.DateLayout, f.StartDate, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start_date %q", ErrInvalidDateRange, f.StartDate)
	}
	end, err := time.ParseInLocation(tz.DateLayout, f.EndDate, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("%w: end_date %q", ErrInvalidDateRange, f.EndDate)
	}
	if end.Before(start) {
		return Window{}, fmt.Errorf("%w: %s is before %s", ErrInvalidDateRange, f.EndDate, f.StartDate)
	}
	return Window{Start: StartOfDay(start), End: EndOfDay(end)}, nil
}

// StartOfDay truncates t to midnight of its UTC calendar day.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last representable instant of t's UTC calendar day.
func EndOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, time.UTC)
}

// startOfWeek returns midnight of the Sunday beginning t's calendar week.
func startOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}
