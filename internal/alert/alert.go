// Package alert decides when meeting notifications fire. A cron-driven
// evaluator walks every eligible activity, derives its next alert instant
// from the shared recurrence engine, and fans a notification request out to
// the attendees whenever "now" sits inside the lookback band ending at that
// instant.
//
// Delivery is at-least-once: if the cron interval is shorter than the band,
// overlapping runs can emit duplicates for the same occurrence and attendee.
// Deduplication, if wanted, belongs to the notification service.
package alert

import (
	"context"
	"time"

	appLog "meetsched/internal/log"
	"meetsched/internal/model"
	"meetsched/internal/notify"
	"meetsched/internal/recur"
	"meetsched/internal/window"
)

// DefaultLookback is the width of the notify band. The evaluator schedule
// must run at least this often or alerts can fall between runs.
const DefaultLookback = 16 * time.Minute

// ActivitySource yields the activities eligible for alerting.
type ActivitySource interface {
	ListAlertCandidates(ctx context.Context, dayStart time.Time) ([]model.Activity, error)
}

// Evaluator runs one alert pass over all eligible activities.
type Evaluator struct {
	source   ActivitySource
	notifier notify.Notifier
	lookback time.Duration
	now      func() time.Time
}

func NewEvaluator(source ActivitySource, notifier notify.Notifier, lookback time.Duration) *Evaluator {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Evaluator{
		source:   source,
		notifier: notifier,
		lookback: lookback,
		now:      time.Now,
	}
}

// WithNow overrides the evaluator's clock.
func (e *Evaluator) WithNow(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Run performs a single evaluation pass. A failure on one activity is logged
// and does not abort the rest of the batch.
func (e *Evaluator) Run(ctx context.Context) error {
	now := e.now().UTC()

	activities, err := e.source.ListAlertCandidates(ctx, window.StartOfDay(now))
	if err != nil {
		appLog.Error("alert pass: listing candidates failed", err)
		return err
	}

	fired := 0
	for _, act := range activities {
		notified, err := e.evaluate(ctx, act, now)
		if err != nil {
			appLog.Error("alert pass: activity evaluation failed", err, "activity_id", act.ID)
			continue
		}
		if notified {
			fired++
		}
	}

	appLog.Debug("alert pass complete", "candidates", len(activities), "fired", fired)
	return nil
}

func (e *Evaluator) evaluate(ctx context.Context, act model.Activity, now time.Time) (bool, error) {
	alertAt, ok, err := recur.AlertTime(act, now)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	// Fire iff now falls in [alertAt - lookback, alertAt].
	if now.Before(alertAt.Add(-e.lookback)) || now.After(alertAt) {
		return false, nil
	}

	req := notify.Request{
		ActivityID:    act.ID,
		Attendees:     act.AttendeeIDs,
		Module:        "activity",
		Action:        "meeting_alert",
		Title:         act.Title,
		AlertTime:     act.AlertLeadTime,
		AlertTimeUnit: DisplayUnit(act.AlertUnit),
		WorkspaceID:   act.WorkspaceID,
	}
	if err := e.notifier.Notify(ctx, req); err != nil {
		return false, err
	}
	return true, nil
}

// DisplayUnit maps a stored alert unit to the label the notification service
// renders ("min" -> "minutes", "h" -> "hour").
func DisplayUnit(u model.AlertUnit) string {
	if u == model.AlertUnitHours {
		return "hour"
	}
	return "minutes"
}
