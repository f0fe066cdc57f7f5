// Package tz converts externally-supplied wall-clock times in the fixed
// business timezone (UTC+5:30) to the UTC instants the store keeps, and back
// for display.
//
// Two storage conventions are carried over from the existing data and must not
// be changed:
//
//   - Any meeting time whose local wall clock falls in the evening band
//     (18:30..23:59) is shifted back one calendar day before storage. The band
//     is inclusive of 18:30 for start times and exclusive for end times.
//   - All-day activities ignore the supplied times entirely and use the
//     sentinel pair 18:30 UTC on the previous day through 18:29 UTC on the
//     target day (midnight-to-midnight in the business timezone).
package tz

import (
	"fmt"
	"time"
)

// Business is the fixed UTC+5:30 zone all user-facing wall clocks are
// interpreted in.
var Business = time.FixedZone("UTC+05:30", 5*3600+30*60)

const (
	// DateLayout is the external day format (DD-MM-YYYY).
	DateLayout = "02-01-2006"
	// ClockLayout is the external time-of-day format (HH:mm).
	ClockLayout = "15:04"

	combinedLayout = DateLayout + "-" + ClockLayout
)

// ToStorageStart converts a local day + start time to the stored UTC instant.
func ToStorageStart(date, clock string) (time.Time, error) {
	local, err := parseLocal(date, clock)
	if err != nil {
		return time.Time{}, err
	}
	if inEveningBand(local, true) {
		local = local.AddDate(0, 0, -1)
	}
	return local.UTC(), nil
}

// ToStorageEnd converts a local day + end time to the stored UTC instant.
// Unlike start times, exactly 18:30 is not shifted.
func ToStorageEnd(date, clock string) (time.Time, error) {
	local, err := parseLocal(date, clock)
	if err != nil {
		return time.Time{}, err
	}
	if inEveningBand(local, false) {
		local = local.AddDate(0, 0, -1)
	}
	return local.UTC(), nil
}

// AllDayBounds returns the stored sentinel instants for an all-day activity
// on the given local day: 18:30 UTC the day before through 18:29 UTC that day.
func AllDayBounds(date string) (start, end time.Time, err error) {
	day, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("tz: parse date %q: %w", date, err)
	}
	start = time.Date(day.Year(), day.Month(), day.Day(), 18, 30, 0, 0, time.UTC).AddDate(0, 0, -1)
	end = time.Date(day.Year(), day.Month(), day.Day(), 18, 29, 0, 0, time.UTC)
	return start, end, nil
}

// ToDisplayStart renders a stored start instant back to the local day and
// clock strings, undoing the evening-band shift.
func ToDisplayStart(t time.Time) (date, clock string) {
	return toDisplay(t, true)
}

// ToDisplayEnd renders a stored end instant back to the local day and clock
// strings.
func ToDisplayEnd(t time.Time) (date, clock string) {
	return toDisplay(t, false)
}

func toDisplay(t time.Time, isStart bool) (date, clock string) {
	local := t.In(Business)
	if inEveningBand(local, isStart) {
		local = local.AddDate(0, 0, 1)
	}
	return local.Format(DateLayout), local.Format(ClockLayout)
}

func parseLocal(date, clock string) (time.Time, error) {
	local, err := time.ParseInLocation(combinedLayout, date+"-"+clock, Business)
	if err != nil {
		return time.Time{}, fmt.Errorf("tz: parse %q %q: %w", date, clock, err)
	}
	return local, nil
}

// inEveningBand reports whether the wall clock of local falls in the band
// that triggers the previous-day shift. 18:30 itself is in the band for
// start times only.
func inEveningBand(local time.Time, inclusive bool) bool {
	h, m := local.Hour(), local.Minute()
	if h > 18 {
		return true
	}
	if h != 18 {
		return false
	}
	if inclusive {
		return m >= 30
	}
	return m > 30
}
