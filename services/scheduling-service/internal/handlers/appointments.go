package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/supportsched/libs/httpx"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/scheduling"
)

type createRequest struct {
	CustomerID       string   `json:"customer_id"`
	TechnicianID     string   `json:"technician_id"`
	ScheduledStart   string   `json:"scheduled_start"`
	DurationHours    *float64 `json:"duration_hours"`
	Priority         string   `json:"priority"`
	Description      string   `json:"description"`
	Location         string   `json:"location"`
	TicketID         string   `json:"ticket_id"`
	CreatedVia       string   `json:"created_via"`
	SendConfirmation *bool    `json:"send_confirmation"`
	SendReminder     *bool    `json:"send_reminder"`
}

type appointmentResponse struct {
	Appointment appointmentItem `json:"appointment"`
	Warnings    []string        `json:"warnings,omitempty"`
	Changes     []changeItem    `json:"changes,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	start, err := parseTime(req.ScheduledStart)
	if err != nil {
		badRequest(w, "invalid scheduled_start")
		return
	}
	createdVia := model.CreatedVia(req.CreatedVia)
	if createdVia == "" {
		createdVia = model.CreatedViaAPI
	}
	res, err := h.svc.Create(r.Context(), actor, scheduling.CreateRequest{
		CustomerID:       req.CustomerID,
		TechnicianID:     req.TechnicianID,
		Start:            start,
		DurationHours:    req.DurationHours,
		Priority:         model.Priority(req.Priority),
		Description:      req.Description,
		Location:         req.Location,
		TicketID:         req.TicketID,
		CreatedVia:       createdVia,
		SendConfirmation: req.SendConfirmation,
		SendReminder:     req.SendReminder,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, appointmentResponse{Appointment: toItem(res.Appointment), Warnings: res.Warnings})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor) {
	q := r.URL.Query()
	f := model.ListFilter{TechnicianID: strings.TrimSpace(q.Get("technician_id"))}
	var err error
	if f.From, _, err = queryTime(r, "from"); err != nil {
		badRequest(w, "invalid from")
		return
	}
	if f.To, _, err = queryTime(r, "to"); err != nil {
		badRequest(w, "invalid to")
		return
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s := model.Status(strings.TrimSpace(part))
			if !s.Valid() {
				badRequest(w, "invalid status "+part)
				return
			}
			f.Statuses = append(f.Statuses, s)
		}
	}
	if raw := q.Get("include_archived"); raw != "" {
		if f.IncludeArchived, err = strconv.ParseBool(raw); err != nil {
			badRequest(w, "invalid include_archived")
			return
		}
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		badRequest(w, "invalid limit")
		return
	}

	appts, err := h.svc.List(r.Context(), actor, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": toItems(appts)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor) {
	appt, err := h.svc.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appointmentResponse{Appointment: toItem(appt)})
}

type patchRequest struct {
	CustomerID     *string  `json:"customer_id"`
	TechnicianID   *string  `json:"technician_id"`
	ScheduledStart *string  `json:"scheduled_start"`
	DurationHours  *float64 `json:"duration_hours"`
	Priority       *string  `json:"priority"`
	Description    *string  `json:"description"`
	Location       *string  `json:"location"`
	SendReminder   *bool    `json:"send_reminder"`
	Acknowledge    bool     `json:"acknowledge"`
}

func (p patchRequest) patch() (scheduling.Patch, error) {
	out := scheduling.Patch{
		CustomerID:    p.CustomerID,
		TechnicianID:  p.TechnicianID,
		DurationHours: p.DurationHours,
		Description:   p.Description,
		Location:      p.Location,
		SendReminder:  p.SendReminder,
		Acknowledge:   p.Acknowledge,
	}
	if p.ScheduledStart != nil {
		t, err := parseTime(*p.ScheduledStart)
		if err != nil {
			return scheduling.Patch{}, model.Invalid("scheduled_start", "must be RFC3339")
		}
		out.Start = &t
	}
	if p.Priority != nil {
		pr := model.Priority(*p.Priority)
		out.Priority = &pr
	}
	return out, nil
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor) {
	var req patchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	p, err := req.patch()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.svc.Update(r.Context(), actor, r.PathValue("id"), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appointmentResponse{
		Appointment: toItem(res.Appointment),
		Changes:     toChanges(res.Changes),
		Warnings:    res.Warnings,
	})
}

// warnings previews the concerns of an edit given as query parameters.
func (h *Handler) warnings(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor) {
	var p scheduling.Patch
	start, ok, err := queryTime(r, "scheduled_start")
	if err != nil {
		badRequest(w, "invalid scheduled_start")
		return
	}
	if ok {
		p.Start = &start
	}
	if tech := strings.TrimSpace(r.URL.Query().Get("technician_id")); tech != "" {
		p.TechnicianID = &tech
	}
	if r.URL.Query().Has("duration_hours") {
		d, err := queryFloat(r, "duration_hours", 0)
		if err != nil {
			badRequest(w, "invalid duration_hours")
			return
		}
		p.DurationHours = &d
	}
	warnings, err := h.svc.EditWarnings(r.Context(), actor, r.PathValue("id"), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"warnings": warnings})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor) {
	entries, err := h.svc.History(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyItem{ID: e.ID, ActorID: e.ActorID, Body: e.Body, CreatedAt: formatTime(e.CreatedAt)})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"history": items})
}

type transitionFunc func(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error)

func (h *Handler) transition(fn transitionFunc) actorHandler {
	return func(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor) {
		appt, err := fn(r.Context(), actor, r.PathValue("id"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, appointmentResponse{Appointment: toItem(appt)})
	}
}

type rescheduleRequest struct {
	NewStart         string `json:"new_start"`
	NewTechnicianID  string `json:"new_technician_id"`
	Reason           string `json:"reason"`
	NotifyCustomer   *bool  `json:"notify_customer"`
	NotifyTechnician *bool  `json:"notify_technician"`
}

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor) {
	var req rescheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	start, err := parseTime(req.NewStart)
	if err != nil {
		badRequest(w, "invalid new_start")
		return
	}
	res, err := h.svc.Reschedule(r.Context(), actor, r.PathValue("id"), scheduling.RescheduleRequest{
		NewStart:         start,
		NewTechnicianID:  req.NewTechnicianID,
		Reason:           req.Reason,
		NotifyCustomer:   req.NotifyCustomer,
		NotifyTechnician: req.NotifyTechnician,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appointmentResponse{Appointment: toItem(res.Appointment), Warnings: res.Warnings})
}

type cancelRequest struct {
	Reason           string `json:"reason"`
	Detail           string `json:"detail"`
	NotifyCustomer   *bool  `json:"notify_customer"`
	NotifyTechnician *bool  `json:"notify_technician"`
	RefundRequired   *bool  `json:"refund_required"`
	Acknowledge      bool   `json:"acknowledge"`
	Replace          bool   `json:"replace"`
}

type replacementItem struct {
	CustomerID    string  `json:"customer_id"`
	TechnicianID  string  `json:"technician_id"`
	DurationHours float64 `json:"duration_hours"`
	Priority      string  `json:"priority"`
	Location      string  `json:"location,omitempty"`
	Description   string  `json:"description"`
}

type cancelResponse struct {
	Appointment appointmentItem  `json:"appointment"`
	Options     cancelOptions    `json:"options"`
	Replacement *replacementItem `json:"replacement,omitempty"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor) {
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	res, err := h.svc.Cancel(r.Context(), actor, r.PathValue("id"), scheduling.CancelRequest{
		Reason: model.CancelReason(strings.TrimSpace(req.Reason)),
		Detail: req.Detail,
		Overrides: lifecycle.Overrides{
			NotifyCustomer:   req.NotifyCustomer,
			NotifyTechnician: req.NotifyTechnician,
			RefundRequired:   req.RefundRequired,
		},
		Acknowledge: req.Acknowledge,
		Replace:     req.Replace,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := cancelResponse{Appointment: toItem(res.Appointment), Options: toOptions(res.Options)}
	if rep := res.Replacement; rep != nil {
		item := &replacementItem{
			CustomerID:   rep.CustomerID,
			TechnicianID: rep.TechnicianID,
			Priority:     string(rep.Priority),
			Location:     rep.Location,
			Description:  rep.Description,
		}
		if rep.DurationHours != nil {
			item.DurationHours = *rep.DurationHours
		}
		resp.Replacement = item
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
