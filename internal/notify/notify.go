// Package notify delivers notification-creation requests to the external
// notification service. Delivery is fire-and-forget: the alert evaluator
// re-derives anything missed on its next run.
package notify

import (
	"context"

	appLog "meetsched/internal/log"
)

// Request is a notification-creation request fanned out to every attendee of
// an activity occurrence.
type Request struct {
	ActivityID    string   `json:"activity_id"`
	Attendees     []string `json:"attendees"`
	Module        string   `json:"module"`
	Action        string   `json:"action"`
	Title         string   `json:"title"`
	AlertTime     int      `json:"alert_time"`
	AlertTimeUnit string   `json:"alert_time_unit"`
	WorkspaceID   string   `json:"workspace_id"`
}

// Notifier is implemented by notification transports.
type Notifier interface {
	Notify(ctx context.Context, req Request) error
}

// LogNotifier writes each would-be notification to the log. It is the
// fallback transport when no NATS URL is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, req Request) error {
	for _, attendee := range req.Attendees {
		appLog.Info("notification",
			"activity_id", req.ActivityID,
			"attendee_id", attendee,
			"action", req.Action,
			"title", req.Title,
			"workspace_id", req.WorkspaceID,
		)
	}
	return nil
}
