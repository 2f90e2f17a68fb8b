package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/supportsched/libs/httpx"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/scheduling"
)

func (h *Handler) slots(w http.ResponseWriter, r *http.Request, _ lifecycle.Actor) {
	q := r.URL.Query()
	duration, err := queryFloat(r, "duration_hours", 0)
	if err != nil {
		badRequest(w, "invalid duration_hours")
		return
	}
	horizon, err := queryInt(r, "horizon_days")
	if err != nil {
		badRequest(w, "invalid horizon_days")
		return
	}
	max, err := queryInt(r, "max_results")
	if err != nil {
		badRequest(w, "invalid max_results")
		return
	}
	policy := scheduling.SlotPolicy(q.Get("policy"))
	switch policy {
	case "":
		policy = scheduling.PolicyQuick
	case scheduling.PolicyQuick, scheduling.PolicySettings:
	default:
		badRequest(w, "policy must be quick or settings")
		return
	}
	slots, err := h.svc.SuggestSlots(r.Context(), scheduling.SlotQuery{
		TechnicianID:  strings.TrimSpace(q.Get("technician_id")),
		DurationHours: duration,
		HorizonDays:   horizon,
		MaxResults:    max,
		AppointmentID: strings.TrimSpace(q.Get("appointment_id")),
		Policy:        policy,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, formatTime(s))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"slots": out})
}

// conflicts is the soft conflict preview used while entering a booking.
func (h *Handler) conflicts(w http.ResponseWriter, r *http.Request, _ lifecycle.Actor) {
	q := r.URL.Query()
	start, ok, err := queryTime(r, "scheduled_start")
	if err != nil || !ok {
		badRequest(w, "invalid scheduled_start")
		return
	}
	duration, err := queryFloat(r, "duration_hours", 1)
	if err != nil {
		badRequest(w, "invalid duration_hours")
		return
	}
	tech := strings.TrimSpace(q.Get("technician_id"))
	if tech == "" {
		badRequest(w, "technician_id is required")
		return
	}
	found, err := h.svc.PreviewConflicts(r.Context(), tech, start, duration, strings.TrimSpace(q.Get("exclude_id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"conflicts": toItems(found)})
}

func (h *Handler) availableTechnicians(w http.ResponseWriter, r *http.Request, _ lifecycle.Actor) {
	start, ok, err := queryTime(r, "scheduled_start")
	if err != nil || !ok {
		badRequest(w, "invalid scheduled_start")
		return
	}
	duration, err := queryFloat(r, "duration_hours", 1)
	if err != nil {
		badRequest(w, "invalid duration_hours")
		return
	}
	ids, err := h.svc.AvailableTechnicians(r.Context(), start, duration)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"technicians": ids})
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request, _ lifecycle.Actor) {
	s, err := h.settings.Resolve(r.Context(), strings.TrimSpace(r.URL.Query().Get("technician_id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSettingsBody(s))
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor) {
	if !actor.Manager {
		h.writeError(w, r, &model.PermissionError{UserID: actor.ID, Action: "change scheduling settings"})
		return
	}
	var body settingsBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	saved, err := h.settings.Save(r.Context(), body.model())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("scheduling settings saved", "settings_id", saved.ID, "technician_id", saved.TechnicianID, "user_id", actor.ID)
	httpx.WriteJSON(w, http.StatusOK, toSettingsBody(saved))
}

type reasonDefaults struct {
	Reason string `json:"reason"`
	Label  string `json:"label"`
	cancelOptions
}

// cancellationDefaults lists each reason with the toggles a cancel form
// should start with.
func (h *Handler) cancellationDefaults(w http.ResponseWriter, r *http.Request) {
	out := make([]reasonDefaults, 0, len(model.CancelReasons))
	for _, reason := range model.CancelReasons {
		out = append(out, reasonDefaults{
			Reason:        string(reason),
			Label:         reason.Label(),
			cancelOptions: toOptions(lifecycle.CancelDefaults(reason)),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"reasons": out})
}

type statsResponse struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

func (h *Handler) weeklyStats(w http.ResponseWriter, r *http.Request, _ lifecycle.Actor) {
	st, err := h.svc.WeeklyStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := statsResponse{From: formatTime(st.From), To: formatTime(st.To), Total: st.Total, ByStatus: map[string]int{}}
	for status, n := range st.ByStatus {
		resp.ByStatus[string(status)] = n
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) cancellationStats(w http.ResponseWriter, r *http.Request, _ lifecycle.Actor) {
	to, ok, err := queryTime(r, "to")
	if err != nil {
		badRequest(w, "invalid to")
		return
	}
	if !ok {
		to = time.Now()
	}
	from, ok, err := queryTime(r, "from")
	if err != nil {
		badRequest(w, "invalid from")
		return
	}
	if !ok {
		from = to.AddDate(0, 0, -30)
	}
	counts, err := h.svc.CancellationStats(r.Context(), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	byReason := make(map[string]int, len(counts))
	total := 0
	for reason, n := range counts {
		byReason[string(reason)] = n
		total += n
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"from":      formatTime(from),
		"to":        formatTime(to),
		"total":     total,
		"by_reason": byReason,
	})
}
