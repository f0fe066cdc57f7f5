package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"meetsched/internal/model"
	"meetsched/internal/window"
)

// Store exposes the activity queries the adapters need. Writes stay minimal:
// the full CRUD surface belongs to the management service, not here.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store { return &Store{db: db} }

const activityColumns = `
	id, workspace_id, title, agenda, all_day, start_at, end_at,
	recurrence_pattern, recurrence_interval, weekly_day, monthly_day_of_month,
	recurrence_end_date, status_name, alert_lead_time, alert_time_unit,
	attendee_ids, is_deleted`

// Create inserts an activity, assigning an ID when the record carries none,
// and returns the stored ID.
func (s *Store) Create(ctx context.Context, act model.Activity) (string, error) {
	if act.ID == "" {
		act.ID = model.NewID()
	}
	if act.AttendeeIDs == nil {
		act.AttendeeIDs = []string{}
	}
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO activities (
			id, workspace_id, title, agenda, all_day, start_at, end_at,
			recurrence_pattern, recurrence_interval, weekly_day,
			monthly_day_of_month, recurrence_end_date, status_name,
			alert_lead_time, alert_time_unit, attendee_ids, is_deleted
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		act.ID, act.WorkspaceID, act.Title, act.Agenda, act.AllDay,
		act.StartAt, act.EndAt,
		nullPattern(act.Recurrence.Pattern), nullableInt(act.Recurrence.Interval, act.Recurrence.Pattern != model.PatternNone),
		nullString(act.Recurrence.WeeklyDay), nullableInt(act.Recurrence.MonthlyDayOfMonth, act.Recurrence.MonthlyDayOfMonth > 0),
		act.Recurrence.EndDate, act.StatusName,
		nullableInt(act.AlertLeadTime, act.AlertLeadTime > 0), nullString(string(act.AlertUnit)),
		act.AttendeeIDs, act.Deleted,
	)
	if err != nil {
		return "", fmt.Errorf("insert activity: %w", err)
	}
	return act.ID, nil
}

// GetByID fetches a single activity; pgx.ErrNoRows surfaces when missing.
func (s *Store) GetByID(ctx context.Context, id string) (model.Activity, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id = $1`, id)
	return scanActivity(row)
}

// ListForCalendar returns the non-deleted activities of a workspace that can
// contribute occurrences to the window: rows starting at or before the
// window's end whose recurrence either is absent or has not ended before the
// window's start. A row that started before the window but still recurs into
// it is therefore included; the generator decides which occurrences actually
// land inside.
func (s *Store) ListForCalendar(ctx context.Context, workspaceID string, win window.Window) ([]model.Activity, error) {
	q := `SELECT ` + activityColumns + ` FROM activities
		WHERE NOT is_deleted AND workspace_id = $1`
	args := []any{workspaceID}

	if !win.End.IsZero() {
		args = append(args, win.End)
		q += fmt.Sprintf(" AND start_at <= $%d", len(args))
	}
	if !win.Start.IsZero() {
		args = append(args, win.Start)
		q += fmt.Sprintf(" AND (recurrence_end_date IS NULL OR recurrence_end_date >= $%d)", len(args))
	}
	q += " ORDER BY start_at"

	rows, err := s.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list for calendar: %w", err)
	}
	defer rows.Close()
	return collectActivities(rows)
}

// ListAlertCandidates returns every activity eligible for alerting on or
// after dayStart: not deleted, not completed, alert fields present, and
// either recurring into the future or starting today or later.
func (s *Store) ListAlertCandidates(ctx context.Context, dayStart time.Time) ([]model.Activity, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE NOT is_deleted
		  AND status_name <> 'completed'
		  AND alert_lead_time IS NOT NULL
		  AND alert_time_unit IS NOT NULL
		  AND (
			(recurrence_end_date IS NOT NULL AND recurrence_end_date >= $1)
			OR (recurrence_end_date IS NULL AND start_at >= $1)
		  )
		ORDER BY start_at`, dayStart)
	if err != nil {
		return nil, fmt.Errorf("list alert candidates: %w", err)
	}
	defer rows.Close()
	return collectActivities(rows)
}

func collectActivities(rows pgx.Rows) ([]model.Activity, error) {
	var out []model.Activity
	for rows.Next() {
		act, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan activities: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (model.Activity, error) {
	var (
		act       model.Activity
		pattern   *string
		interval  *int
		weeklyDay *string
		monthDay  *int
		endDate   *time.Time
		alertLead *int
		alertUnit *string
	)
	err := row.Scan(
		&act.ID, &act.WorkspaceID, &act.Title, &act.Agenda, &act.AllDay,
		&act.StartAt, &act.EndAt,
		&pattern, &interval, &weeklyDay, &monthDay,
		&endDate, &act.StatusName, &alertLead, &alertUnit,
		&act.AttendeeIDs, &act.Deleted,
	)
	if err != nil {
		return model.Activity{}, fmt.Errorf("scan activity: %w", err)
	}

	if pattern != nil {
		act.Recurrence.Pattern = model.Pattern(*pattern)
	}
	if interval != nil {
		act.Recurrence.Interval = *interval
	}
	if weeklyDay != nil {
		act.Recurrence.WeeklyDay = *weeklyDay
	}
	if monthDay != nil {
		act.Recurrence.MonthlyDayOfMonth = *monthDay
	}
	if endDate != nil {
		utc := endDate.UTC()
		act.Recurrence.EndDate = &utc
	}
	if alertLead != nil {
		act.AlertLeadTime = *alertLead
	}
	if alertUnit != nil {
		act.AlertUnit = model.AlertUnit(*alertUnit)
	}
	act.StartAt = act.StartAt.UTC()
	act.EndAt = act.EndAt.UTC()
	return act, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullPattern(p model.Pattern) *string {
	return nullString(string(p))
}

func nullableInt(v int, present bool) *int {
	if !present {
		return nil
	}
	return &v
}
