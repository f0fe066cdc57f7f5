package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	appLog "meetsched/internal/log"
)

// SubjectMeetingAlert is the subject notification-service consumers
// subscribe to.
const SubjectMeetingAlert = "meetsched.notification.meeting_alert"

// Publisher fans notification requests out over NATS, one message per
// attendee. A failed publish for one attendee does not stop the rest.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher connects to the given NATS URL.
func NewPublisher(url string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("notify: connect to NATS: %w", err)
	}
	appLog.Info("connected to NATS", "url", url)
	return &Publisher{nc: nc}, nil
}

// Close releases the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

type attendeeMessage struct {
	ActivityID    string    `json:"activity_id"`
	AttendeeID    string    `json:"attendee_id"`
	Module        string    `json:"module"`
	Action        string    `json:"action"`
	Title         string    `json:"title"`
	AlertTime     int       `json:"alert_time"`
	AlertTimeUnit string    `json:"alert_time_unit"`
	WorkspaceID   string    `json:"workspace_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (p *Publisher) Notify(_ context.Context, req Request) error {
	var lastErr error
	for _, attendee := range req.Attendees {
		msg := attendeeMessage{
			ActivityID:    req.ActivityID,
			AttendeeID:    attendee,
			Module:        req.Module,
			Action:        req.Action,
			Title:         req.Title,
			AlertTime:     req.AlertTime,
			AlertTimeUnit: req.AlertTimeUnit,
			WorkspaceID:   req.WorkspaceID,
			OccurredAt:    time.Now().UTC(),
		}
		data, err := json.Marshal(msg)
		if err != nil {
			lastErr = fmt.Errorf("notify: marshal: %w", err)
			appLog.Error("notification marshal failed", err, "activity_id", req.ActivityID, "attendee_id", attendee)
			continue
		}
		if err := p.nc.Publish(SubjectMeetingAlert, data); err != nil {
			lastErr = fmt.Errorf("notify: publish: %w", err)
			appLog.Error("notification publish failed", err, "activity_id", req.ActivityID, "attendee_id", attendee)
			continue
		}
		appLog.Debug("published notification",
			"subject", SubjectMeetingAlert,
			"activity_id", req.ActivityID,
			"attendee_id", attendee,
		)
	}
	return lastErr
}
