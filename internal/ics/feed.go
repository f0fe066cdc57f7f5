// Package ics renders a workspace's activities as a subscribable iCalendar
// feed. The native recurrence rule is not RFC 5545 (daily/monthly step by
// interval+1, weekly carries a single weekday), so the RRULE emitted here is
// a best-effort mapping for external calendar clients; the authoritative
// expansion stays in internal/recur.
package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"meetsched/internal/model"
	"meetsched/internal/recur"
	"meetsched/internal/window"
)

var rruleWeekday = map[string]rrule.Weekday{
	"sunday":    rrule.SU,
	"monday":    rrule.MO,
	"tuesday":   rrule.TU,
	"wednesday": rrule.WE,
	"thursday":  rrule.TH,
	"friday":    rrule.FR,
	"saturday":  rrule.SA,
}

// BuildFeed serializes the activities into a VCALENDAR payload.
// Activities with malformed recurrence rules are skipped, not fatal.
func BuildFeed(activities []model.Activity, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//meetsched//calendar feed//EN")

	for _, act := range activities {
		ev := cal.AddEvent(act.ID)
		ev.SetDtStampTime(now.UTC())
		ev.SetSummary(act.Title)
		if act.Agenda != "" {
			ev.SetDescription(act.Agenda)
		}
		if act.AllDay {
			ev.SetAllDayStartAt(act.StartAt)
			ev.SetAllDayEndAt(act.EndAt)
		} else {
			ev.SetStartAt(act.StartAt)
			ev.SetEndAt(act.EndAt)
		}

		rule, err := RRuleString(act.Recurrence, act.StartAt)
		if err != nil {
			// Leave the event in the feed as a one-off.
			continue
		}
		if rule != "" {
			ev.AddRrule(rule)
		}
	}

	return cal.Serialize()
}

// RRuleString maps a recurrence rule to an RRULE value. It returns "" for
// non-recurring rules and an error for malformed ones.
func RRuleString(r model.Recurrence, dtstart time.Time) (string, error) {
	if !r.IsRecurring() {
		return "", nil
	}
	if err := recur.Validate(r); err != nil {
		return "", err
	}

	opt := rrule.ROption{
		Dtstart: dtstart.UTC(),
		Until:   window.EndOfDay(*r.EndDate),
	}
	switch r.Pattern {
	case model.PatternDaily:
		opt.Freq = rrule.DAILY
		opt.Interval = r.Interval + 1
	case model.PatternWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = r.Interval
		if opt.Interval < 1 {
			opt.Interval = 1
		}
		opt.Byweekday = []rrule.Weekday{rruleWeekday[r.WeeklyDay]}
	case model.PatternMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Interval = r.Interval + 1
		opt.Bymonthday = []int{r.MonthlyDayOfMonth}
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("ics: build rrule: %w", err)
	}
	return rule.OrigOptions.RRuleString(), nil
}
