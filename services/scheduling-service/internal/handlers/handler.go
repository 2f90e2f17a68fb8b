package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/supportsched/libs/auth"
	"github.com/md-rashed-zaman/supportsched/libs/httpx"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/scheduling"
)

// Scheduler is the operation surface the HTTP layer drives.
type Scheduler interface {
	ResolveActor(ctx context.Context, userID string) (lifecycle.Actor, error)
	Create(ctx context.Context, actor lifecycle.Actor, req scheduling.CreateRequest) (scheduling.CreateResult, error)
	Get(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error)
	List(ctx context.Context, actor lifecycle.Actor, f model.ListFilter) ([]model.Appointment, error)
	History(ctx context.Context, actor lifecycle.Actor, id string) ([]model.HistoryEntry, error)
	Update(ctx context.Context, actor lifecycle.Actor, id string, p scheduling.Patch) (scheduling.UpdateResult, error)
	EditWarnings(ctx context.Context, actor lifecycle.Actor, id string, p scheduling.Patch) ([]string, error)
	Confirm(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error)
	Start(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error)
	Complete(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error)
	Reschedule(ctx context.Context, actor lifecycle.Actor, id string, req scheduling.RescheduleRequest) (scheduling.RescheduleResult, error)
	Cancel(ctx context.Context, actor lifecycle.Actor, id string, req scheduling.CancelRequest) (scheduling.CancelResult, error)
	PreviewConflicts(ctx context.Context, technicianID string, start time.Time, durationHours float64, excludeID string) ([]model.Appointment, error)
	SuggestSlots(ctx context.Context, q scheduling.SlotQuery) ([]time.Time, error)
	AvailableTechnicians(ctx context.Context, start time.Time, durationHours float64) ([]string, error)
	WeeklyStats(ctx context.Context) (scheduling.StatusStats, error)
	CancellationStats(ctx context.Context, from, to time.Time) (map[model.CancelReason]int, error)
}

type SettingsService interface {
	Resolve(ctx context.Context, technicianID string) (model.Settings, error)
	Save(ctx context.Context, s model.Settings) (model.Settings, error)
}

type Handler struct {
	svc      Scheduler
	settings SettingsService
	logger   *slog.Logger
}

func New(svc Scheduler, settings SettingsService, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, settings: settings, logger: logger}
}

// Register mounts the API under /api/v1.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/appointments", h.actor(h.create))
	mux.HandleFunc("GET /api/v1/appointments", h.actor(h.list))
	mux.HandleFunc("GET /api/v1/appointments/{id}", h.actor(h.get))
	mux.HandleFunc("PATCH /api/v1/appointments/{id}", h.actor(h.update))
	mux.HandleFunc("POST /api/v1/appointments/{id}/confirm", h.actor(h.transition(h.svc.Confirm)))
	mux.HandleFunc("POST /api/v1/appointments/{id}/start", h.actor(h.transition(h.svc.Start)))
	mux.HandleFunc("POST /api/v1/appointments/{id}/complete", h.actor(h.transition(h.svc.Complete)))
	mux.HandleFunc("POST /api/v1/appointments/{id}/reschedule", h.actor(h.reschedule))
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", h.actor(h.cancel))
	mux.HandleFunc("GET /api/v1/appointments/{id}/warnings", h.actor(h.warnings))
	mux.HandleFunc("GET /api/v1/appointments/{id}/history", h.actor(h.history))
	mux.HandleFunc("GET /api/v1/slots", h.actor(staffOnly(h.slots)))
	mux.HandleFunc("GET /api/v1/conflicts", h.actor(staffOnly(h.conflicts)))
	mux.HandleFunc("GET /api/v1/technicians/available", h.actor(staffOnly(h.availableTechnicians)))
	mux.HandleFunc("GET /api/v1/settings", h.actor(staffOnly(h.getSettings)))
	mux.HandleFunc("PUT /api/v1/settings", h.actor(h.putSettings))
	mux.HandleFunc("GET /api/v1/cancellation-defaults", h.cancellationDefaults)
	mux.HandleFunc("GET /api/v1/stats/weekly", h.actor(staffOnly(h.weeklyStats)))
	mux.HandleFunc("GET /api/v1/stats/cancellations", h.actor(staffOnly(h.cancellationStats)))
}

type actorHandler func(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor)

// actor resolves the signed-in user's capabilities before calling next.
func (h *Handler) actor(next actorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var userID string
		if c, ok := auth.ClaimsFromContext(r.Context()); ok {
			userID = c.Sub
		}
		a, err := h.svc.ResolveActor(r.Context(), userID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next(w, r, a)
	}
}

func staffOnly(next actorHandler) actorHandler {
	return func(w http.ResponseWriter, r *http.Request, a lifecycle.Actor) {
		if !a.Manager && !a.Technician {
			httpx.WriteJSON(w, http.StatusForbidden, errorBody{Error: "support staff only"})
			return
		}
		next(w, r, a)
	}
}

type errorBody struct {
	Error     string            `json:"error"`
	Field     string            `json:"field,omitempty"`
	Conflicts []appointmentItem `json:"conflicts,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// writeError maps domain errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *model.ValidationError
		conflict   *model.ConflictError
		state      *model.StateError
		permission *model.PermissionError
		warning    *model.WarningError
	)
	switch {
	case errors.As(err, &validation):
		httpx.WriteJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Field: validation.Field})
	case errors.As(err, &conflict):
		httpx.WriteJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Conflicts: toItems(conflict.Conflicts)})
	case errors.As(err, &state):
		httpx.WriteJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.As(err, &permission):
		httpx.WriteJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.As(err, &warning):
		httpx.WriteJSON(w, http.StatusPreconditionRequired, errorBody{Error: err.Error(), Warnings: warning.Warnings})
	case errors.Is(err, model.ErrNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, errorBody{Error: "appointment not found"})
	case errors.Is(err, scheduling.ErrBusy):
		w.Header().Set("Retry-After", "1")
		httpx.WriteJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteJSON(w, http.StatusGatewayTimeout, errorBody{Error: "request timed out"})
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	httpx.WriteJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(raw))
}

// queryTime parses an optional RFC3339 query parameter.
func queryTime(r *http.Request, key string) (time.Time, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, err := parseTime(raw)
	return t, err == nil, err
}

func queryFloat(r *http.Request, key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
