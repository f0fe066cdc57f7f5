// Package web is the HTTP adapter over the scheduling core: it resolves the
// caller's date filter, expands recurrences, and returns the occurrence list
// a calendar UI renders.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"meetsched/internal/config"
	"meetsched/internal/ics"
	appLog "meetsched/internal/log"
	"meetsched/internal/model"
	"meetsched/internal/recur"
	"meetsched/internal/tz"
	"meetsched/internal/window"
)

// ActivityStore is the slice of the store the adapter needs.
type ActivityStore interface {
	ListForCalendar(ctx context.Context, workspaceID string, win window.Window) ([]model.Activity, error)
	Create(ctx context.Context, act model.Activity) (string, error)
}

// Server serves the calendar listing API.
type Server struct {
	cfg    *config.Config
	store  ActivityStore
	router *mux.Router
	now    func() time.Time
}

func NewServer(cfg *config.Config, store ActivityStore) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		router: mux.NewRouter(),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// WithNow overrides the server's clock.
func (s *Server) WithNow(now func() time.Time) *Server {
	s.now = now
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/activities", s.handleActivities).Methods(http.MethodGet)
	s.router.HandleFunc("/api/activities", s.handleCreateActivity).Methods(http.MethodPost)
	s.router.HandleFunc("/api/calendar.ics", s.handleCalendarFeed).Methods(http.MethodGet)
}

// Handler returns the routed handler, wrapped with basic auth when
// configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards every endpoint except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="meetsched", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// occurrenceJSON is the client-facing projection of an occurrence.
type occurrenceJSON struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      string    `json:"status"`
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	workspaceID := q.Get("workspace_id")
	if workspaceID == "" {
		writeProblem(w, http.StatusBadRequest, "missing parameter", "workspace_id is required")
		return
	}

	filter := window.Filter{
		Date:      q.Get("date"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}
	win, err := window.Resolve(filter, s.now())
	if err != nil {
		switch {
		case errors.Is(err, window.ErrMissingDateRange):
			writeProblem(w, http.StatusBadRequest, "missing date range", err.Error())
		case errors.Is(err, window.ErrInvalidDateRange):
			writeProblem(w, http.StatusBadRequest, "invalid date range", err.Error())
		case errors.Is(err, window.ErrUnknownFilter):
			writeProblem(w, http.StatusBadRequest, "unknown date filter", err.Error())
		default:
			writeProblem(w, http.StatusInternalServerError, "filter resolution failed", err.Error())
		}
		return
	}

	activities, err := s.store.ListForCalendar(r.Context(), workspaceID, win)
	if err != nil {
		appLog.Error("calendar listing query failed", err, "workspace_id", workspaceID)
		writeProblem(w, http.StatusInternalServerError, "listing failed", "could not load activities")
		return
	}

	out := make([]occurrenceJSON, 0)
	for _, act := range activities {
		occs, err := recur.Expand(act, win)
		if err != nil {
			// A single broken rule must not take the whole calendar down.
			appLog.Error("occurrence expansion failed", err, "activity_id", act.ID)
			continue
		}
		for _, occ := range occs {
			out = append(out, occurrenceJSON{
				ID:          occ.ActivityID,
				Title:       occ.Title,
				Description: occ.Description,
				AllDay:      occ.AllDay,
				Start:       occ.Start,
				End:         occ.End,
				Status:      occ.Status,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })

	writeJSON(w, http.StatusOK, out)
}

// createActivityRequest carries the external representation of a new meeting:
// wall-clock day and times in the business timezone, recurrence fields, and
// the optional alert configuration.
type createActivityRequest struct {
	WorkspaceID                 string   `json:"workspace_id"`
	Title                       string   `json:"title"`
	Agenda                      string   `json:"agenda"`
	AllDay                      bool     `json:"all_day"`
	MeetingDate                 string   `json:"meeting_date"`
	StartTime                   string   `json:"start_time"`
	EndTime                     string   `json:"end_time"`
	Attendees                   []string `json:"attendees"`
	AlertLeadTime               int      `json:"alert_time"`
	AlertTimeUnit               string   `json:"alert_time_unit"`
	RecurrencePattern           string   `json:"recurrence_pattern"`
	RecurrenceInterval          int      `json:"recurrence_interval"`
	WeeklyRecurrenceDay         string   `json:"weekly_recurrence_day"`
	MonthlyRecurrenceDayOfMonth int      `json:"monthly_recurrence_day_of_month"`
	RecurrenceEndDate           string   `json:"recurrence_end_date"`
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var req createActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	if req.WorkspaceID == "" || req.Title == "" || req.MeetingDate == "" {
		writeProblem(w, http.StatusBadRequest, "missing field",
			"workspace_id, title and meeting_date are required")
		return
	}

	var (
		start, end time.Time
		err        error
	)
	if req.AllDay {
		start, end, err = tz.AllDayBounds(req.MeetingDate)
	} else {
		start, err = tz.ToStorageStart(req.MeetingDate, req.StartTime)
		if err == nil {
			end, err = tz.ToStorageEnd(req.MeetingDate, req.EndTime)
		}
	}
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid meeting time", err.Error())
		return
	}
	if !end.After(start) {
		writeProblem(w, http.StatusBadRequest, "invalid meeting time", "end time must be after start time")
		return
	}

	act := model.Activity{
		WorkspaceID: req.WorkspaceID,
		Title:       req.Title,
		Agenda:      req.Agenda,
		AllDay:      req.AllDay,
		StartAt:     start,
		EndAt:       end,
		StatusName:  "pending",
		AttendeeIDs: req.Attendees,
	}
	if req.AlertLeadTime > 0 && req.AlertTimeUnit != "" {
		act.AlertLeadTime = req.AlertLeadTime
		act.AlertUnit = model.AlertUnit(req.AlertTimeUnit)
	}
	if req.RecurrencePattern != "" {
		act.Recurrence = model.Recurrence{
			Pattern:           model.Pattern(req.RecurrencePattern),
			Interval:          req.RecurrenceInterval,
			WeeklyDay:         req.WeeklyRecurrenceDay,
			MonthlyDayOfMonth: req.MonthlyRecurrenceDayOfMonth,
		}
		if req.RecurrenceEndDate != "" {
			endDate, err := time.ParseInLocation(tz.DateLayout, req.RecurrenceEndDate, time.UTC)
			if err != nil {
				writeProblem(w, http.StatusBadRequest, "invalid recurrence end date", err.Error())
				return
			}
			if endDate.Before(window.StartOfDay(start)) {
				writeProblem(w, http.StatusBadRequest, "invalid recurrence end date",
					"recurrence must not end before the meeting date")
				return
			}
			act.Recurrence.EndDate = &endDate
		}
		if err := recur.Validate(act.Recurrence); err != nil {
			writeProblem(w, http.StatusBadRequest, "invalid recurrence rule", err.Error())
			return
		}
	}

	id, err := s.store.Create(r.Context(), act)
	if err != nil {
		appLog.Error("activity insert failed", err, "workspace_id", req.WorkspaceID)
		writeProblem(w, http.StatusInternalServerError, "create failed", "could not store activity")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleCalendarFeed(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		writeProblem(w, http.StatusBadRequest, "missing parameter", "workspace_id is required")
		return
	}

	activities, err := s.store.ListForCalendar(r.Context(), workspaceID, window.Window{})
	if err != nil {
		appLog.Error("calendar feed query failed", err, "workspace_id", workspaceID)
		writeProblem(w, http.StatusInternalServerError, "feed failed", "could not load activities")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.BuildFeed(activities, s.now())))
}

// StartServer runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func StartServer(ctx context.Context, cfg *config.Config, store ActivityStore) error {
	s := NewServer(cfg, store)
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
