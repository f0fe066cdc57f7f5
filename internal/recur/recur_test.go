package recur

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"meetsched/internal/model"
	"meetsched/internal/window"
)

func utc(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func dailyActivity() model.Activity {
	return model.Activity{
		ID:      "act-1",
		Title:   "standup",
		StartAt: utc(2024, time.January, 1, 10, 0),
		EndAt:   utc(2024, time.January, 1, 10, 30),
		Recurrence: model.Recurrence{
			Pattern:  model.PatternDaily,
			Interval: 0,
			EndDate:  datePtr(2024, time.January, 5),
		},
		StatusName: "pending",
	}
}

func january() window.Window {
	return window.Window{
		Start: utc(2024, time.January, 1, 0, 0),
		End:   utc(2024, time.January, 31, 23, 59),
	}
}

func starts(occs []model.Occurrence) []time.Time {
	out := make([]time.Time, len(occs))
	for i, o := range occs {
		out[i] = o.Start
	}
	return out
}

func TestExpandDaily(t *testing.T) {
	occs, err := Expand(dailyActivity(), january())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	want := []time.Time{
		utc(2024, time.January, 1, 10, 0),
		utc(2024, time.January, 2, 10, 0),
		utc(2024, time.January, 3, 10, 0),
		utc(2024, time.January, 4, 10, 0),
		utc(2024, time.January, 5, 10, 0),
	}
	if !reflect.DeepEqual(starts(occs), want) {
		t.Fatalf("starts = %v, want %v", starts(occs), want)
	}
	for _, occ := range occs {
		if got := occ.End.Sub(occ.Start); got != 30*time.Minute {
			t.Errorf("occurrence %s duration = %v, want 30m", occ.Start, got)
		}
		if occ.Status != "pending" || occ.ActivityID != "act-1" {
			t.Errorf("occurrence fields not copied: %+v", occ)
		}
	}
}

func TestExpandDailyIntervalSkipsDays(t *testing.T) {
	act := dailyActivity()
	act.Recurrence.Interval = 1 // every 2 days
	occs, err := Expand(act, january())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []time.Time{
		utc(2024, time.January, 1, 10, 0),
		utc(2024, time.January, 3, 10, 0),
		utc(2024, time.January, 5, 10, 0),
	}
	if !reflect.DeepEqual(starts(occs), want) {
		t.Fatalf("starts = %v, want %v", starts(occs), want)
	}
}

func TestExpandWeeklyStartsOnTargetWeekday(t *testing.T) {
	// 2024-01-01 is a Monday; the rule targets Wednesdays for four weeks.
	act := model.Activity{
		ID:      "act-2",
		StartAt: utc(2024, time.January, 1, 10, 0),
		EndAt:   utc(2024, time.January, 1, 10, 30),
		Recurrence: model.Recurrence{
			Pattern:   model.PatternWeekly,
			Interval:  0,
			WeeklyDay: "wednesday",
			EndDate:   datePtr(2024, time.January, 29),
		},
	}

	occs, err := Expand(act, january())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	want := []time.Time{
		utc(2024, time.January, 3, 10, 0),
		utc(2024, time.January, 10, 10, 0),
		utc(2024, time.January, 17, 10, 0),
		utc(2024, time.January, 24, 10, 0),
	}
	if !reflect.DeepEqual(starts(occs), want) {
		t.Fatalf("starts = %v, want %v", starts(occs), want)
	}

	seen := map[time.Time]bool{}
	last := time.Time{}
	for _, occ := range occs {
		if occ.Start.Weekday() != time.Wednesday {
			t.Errorf("occurrence on %s, want Wednesday", occ.Start.Weekday())
		}
		if !occ.Start.After(last) {
			t.Errorf("occurrences not strictly increasing at %s", occ.Start)
		}
		if seen[occ.Start] {
			t.Errorf("duplicate occurrence at %s", occ.Start)
		}
		seen[occ.Start] = true
		last = occ.Start
	}
}

func TestExpandWeeklyIntervalWeeks(t *testing.T) {
	// Start already on the target weekday; interval 1 steps a week, then
	// the weekday roll adds another, giving a two-week cadence.
	act := model.Activity{
		StartAt: utc(2024, time.January, 3, 9, 0), // Wednesday
		EndAt:   utc(2024, time.January, 3, 10, 0),
		Recurrence: model.Recurrence{
			Pattern:   model.PatternWeekly,
			Interval:  1,
			WeeklyDay: "wednesday",
			EndDate:   datePtr(2024, time.February, 29),
		},
	}
	occs, err := Expand(act, window.Window{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []time.Time{
		utc(2024, time.January, 3, 9, 0),
		utc(2024, time.January, 17, 9, 0),
		utc(2024, time.January, 31, 9, 0),
		utc(2024, time.February, 14, 9, 0),
		utc(2024, time.February, 28, 9, 0),
	}
	if !reflect.DeepEqual(starts(occs), want) {
		t.Fatalf("starts = %v, want %v", starts(occs), want)
	}
}

func TestExpandMonthly(t *testing.T) {
	act := model.Activity{
		StartAt: utc(2024, time.January, 15, 14, 0),
		EndAt:   utc(2024, time.January, 15, 15, 0),
		Recurrence: model.Recurrence{
			Pattern:           model.PatternMonthly,
			Interval:          0,
			MonthlyDayOfMonth: 15,
			EndDate:           datePtr(2024, time.April, 30),
		},
	}
	occs, err := Expand(act, window.Window{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []time.Time{
		utc(2024, time.January, 15, 14, 0),
		utc(2024, time.February, 15, 14, 0),
		utc(2024, time.March, 15, 14, 0),
		utc(2024, time.April, 15, 14, 0),
	}
	if !reflect.DeepEqual(starts(occs), want) {
		t.Fatalf("starts = %v, want %v", starts(occs), want)
	}
}

func TestExpandMonthlyDay31SkipsShortMonths(t *testing.T) {
	// Day 31 stepping out of January: February has no day 31, so the step
	// normalizes forward, detects the month change, adds one clamped month
	// and sets the day again (overflowing once more past April). The
	// deterministic result lands on May 1.
	act := model.Activity{
		StartAt: utc(2024, time.January, 31, 8, 0),
		EndAt:   utc(2024, time.January, 31, 9, 0),
		Recurrence: model.Recurrence{
			Pattern:           model.PatternMonthly,
			Interval:          0,
			MonthlyDayOfMonth: 31,
			EndDate:           datePtr(2024, time.May, 31),
		},
	}
	occs, err := Expand(act, window.Window{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []time.Time{
		utc(2024, time.January, 31, 8, 0),
		utc(2024, time.May, 1, 8, 0),
	}
	if !reflect.DeepEqual(starts(occs), want) {
		t.Fatalf("starts = %v, want %v", starts(occs), want)
	}
}

func TestExpandWindowFiltersWithoutChangingWalk(t *testing.T) {
	act := dailyActivity()
	win := window.Window{
		Start: utc(2024, time.January, 3, 0, 0),
		End:   utc(2024, time.January, 4, 23, 59),
	}
	occs, err := Expand(act, win)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []time.Time{
		utc(2024, time.January, 3, 10, 0),
		utc(2024, time.January, 4, 10, 0),
	}
	if !reflect.DeepEqual(starts(occs), want) {
		t.Fatalf("starts = %v, want %v", starts(occs), want)
	}
	for _, occ := range occs {
		if !win.Contains(occ.Start) {
			t.Errorf("occurrence %s outside window", occ.Start)
		}
	}
}

func TestExpandNonRecurring(t *testing.T) {
	act := dailyActivity()
	act.Recurrence = model.Recurrence{}

	occs, err := Expand(act, january())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occs) != 1 || !occs[0].Start.Equal(act.StartAt) {
		t.Fatalf("occs = %v, want single canonical occurrence", occs)
	}

	outside := window.Window{
		Start: utc(2024, time.February, 1, 0, 0),
		End:   utc(2024, time.February, 28, 0, 0),
	}
	occs, err = Expand(act, outside)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occs) != 0 {
		t.Fatalf("occs = %v, want none outside window", occs)
	}
}

func TestExpandPatternWithoutEndDateIsNonRecurring(t *testing.T) {
	act := dailyActivity()
	act.Recurrence.EndDate = nil

	occs, err := Expand(act, january())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occs) != 1 {
		t.Fatalf("got %d occurrences, want the canonical one only", len(occs))
	}
}

func TestExpandIdempotent(t *testing.T) {
	act := dailyActivity()
	first, err := Expand(act, january())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	second, err := Expand(act, january())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated expansion differs:\n%v\n%v", first, second)
	}
}

func TestExpandMalformedRules(t *testing.T) {
	base := dailyActivity()

	cases := []struct {
		name   string
		mutate func(*model.Activity)
	}{
		{"weekly without weekday", func(a *model.Activity) {
			a.Recurrence.Pattern = model.PatternWeekly
			a.Recurrence.WeeklyDay = ""
		}},
		{"weekly with unknown weekday", func(a *model.Activity) {
			a.Recurrence.Pattern = model.PatternWeekly
			a.Recurrence.WeeklyDay = "someday"
		}},
		{"monthly without day", func(a *model.Activity) {
			a.Recurrence.Pattern = model.PatternMonthly
			a.Recurrence.MonthlyDayOfMonth = 0
		}},
		{"monthly day out of range", func(a *model.Activity) {
			a.Recurrence.Pattern = model.PatternMonthly
			a.Recurrence.MonthlyDayOfMonth = 32
		}},
		{"negative interval", func(a *model.Activity) {
			a.Recurrence.Interval = -1
		}},
		{"unknown pattern", func(a *model.Activity) {
			a.Recurrence.Pattern = model.Pattern("yearly")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			act := base
			tc.mutate(&act)
			if _, err := Expand(act, january()); !errors.Is(err, ErrMalformedRecurrence) {
				t.Fatalf("err = %v, want ErrMalformedRecurrence", err)
			}
		})
	}
}

func TestExpandTerminatesWithinCap(t *testing.T) {
	act := dailyActivity()
	act.Recurrence.EndDate = datePtr(2033, time.December, 31) // ~10 years daily
	occs, err := Expand(act, window.Window{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occs) == 0 || len(occs) > maxOccurrencesPerActivity {
		t.Fatalf("got %d occurrences", len(occs))
	}
}

func TestExpandCapsPathologicalRange(t *testing.T) {
	act := dailyActivity()
	act.Recurrence.EndDate = datePtr(2100, time.December, 31)
	if _, err := Expand(act, window.Window{}); !errors.Is(err, ErrExpansionCapped) {
		t.Fatalf("err = %v, want ErrExpansionCapped", err)
	}
}

func TestAlertTimeNonRecurring(t *testing.T) {
	act := dailyActivity()
	act.Recurrence = model.Recurrence{}
	act.AlertLeadTime = 15
	act.AlertUnit = model.AlertUnitMinutes

	at, ok, err := AlertTime(act, utc(2023, time.December, 1, 0, 0))
	if err != nil || !ok {
		t.Fatalf("AlertTime: ok=%v err=%v", ok, err)
	}
	if want := utc(2024, time.January, 1, 9, 45); !at.Equal(want) {
		t.Fatalf("alert at %s, want %s", at, want)
	}
}

func TestAlertTimeSkipsPastOccurrences(t *testing.T) {
	act := dailyActivity()
	act.Recurrence.EndDate = datePtr(2024, time.January, 10)
	act.AlertLeadTime = 15
	act.AlertUnit = model.AlertUnitMinutes

	now := utc(2024, time.January, 3, 9, 0)
	at, ok, err := AlertTime(act, now)
	if err != nil || !ok {
		t.Fatalf("AlertTime: ok=%v err=%v", ok, err)
	}
	// Jan 1 and Jan 2 are already past; the next occurrence is Jan 3 10:00.
	if want := utc(2024, time.January, 3, 9, 45); !at.Equal(want) {
		t.Fatalf("alert at %s, want %s", at, want)
	}
}

func TestAlertTimeHoursUnit(t *testing.T) {
	act := dailyActivity()
	act.Recurrence = model.Recurrence{}
	act.AlertLeadTime = 2
	act.AlertUnit = model.AlertUnitHours

	at, ok, err := AlertTime(act, utc(2023, time.December, 1, 0, 0))
	if err != nil || !ok {
		t.Fatalf("AlertTime: ok=%v err=%v", ok, err)
	}
	if want := utc(2024, time.January, 1, 8, 0); !at.Equal(want) {
		t.Fatalf("alert at %s, want %s", at, want)
	}
}

func TestAlertTimeWithoutConfig(t *testing.T) {
	act := dailyActivity()
	if _, ok, err := AlertTime(act, utc(2024, time.January, 1, 0, 0)); ok || err != nil {
		t.Fatalf("ok=%v err=%v, want no alert and no error", ok, err)
	}
}

func TestAlertTimeMalformedRecurrence(t *testing.T) {
	act := dailyActivity()
	act.Recurrence.Pattern = model.PatternWeekly // no weekday
	act.AlertLeadTime = 15
	act.AlertUnit = model.AlertUnitMinutes

	if _, _, err := AlertTime(act, utc(2024, time.January, 1, 0, 0)); !errors.Is(err, ErrMalformedRecurrence) {
		t.Fatalf("err = %v, want ErrMalformedRecurrence", err)
	}
}

func TestAlertTimeAgreesWithExpand(t *testing.T) {
	// The alert search and the generator must land on identical instants;
	// a drift here means duplicate or missing alerts.
	act := model.Activity{
		StartAt: utc(2024, time.January, 1, 10, 0), // Monday
		EndAt:   utc(2024, time.January, 1, 10, 30),
		Recurrence: model.Recurrence{
			Pattern:   model.PatternWeekly,
			Interval:  0,
			WeeklyDay: "wednesday",
			EndDate:   datePtr(2024, time.March, 1),
		},
		AlertLeadTime: 10,
		AlertUnit:     model.AlertUnitMinutes,
	}

	occs, err := Expand(act, window.Window{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	for _, occ := range occs {
		now := occ.Start.Add(-time.Hour)
		at, ok, err := AlertTime(act, now)
		if err != nil || !ok {
			t.Fatalf("AlertTime(%s): ok=%v err=%v", now, ok, err)
		}
		if want := occ.Start.Add(-10 * time.Minute); !at.Equal(want) {
			t.Errorf("alert for occurrence %s = %s, want %s", occ.Start, at, want)
		}
	}
}

func TestLeadDuration(t *testing.T) {
	cases := []struct {
		lead int
		unit model.AlertUnit
		want time.Duration
	}{
		{15, model.AlertUnitMinutes, 15 * time.Minute},
		{2, model.AlertUnitHours, 2 * time.Hour},
		{5, model.AlertUnit("days"), 0},
	}
	for _, tc := range cases {
		if got := LeadDuration(tc.lead, tc.unit); got != tc.want {
			t.Errorf("LeadDuration(%d, %q) = %v, want %v", tc.lead, tc.unit, got, tc.want)
		}
	}
}
