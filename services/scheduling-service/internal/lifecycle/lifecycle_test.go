package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

func TestNextTransitions(t *testing.T) {
	allowed := []struct {
		from   model.Status
		action Action
		to     model.Status
	}{
		{model.StatusDraft, ActionConfirm, model.StatusConfirmed},
		{model.StatusConfirmed, ActionStart, model.StatusInProgress},
		{model.StatusInProgress, ActionComplete, model.StatusCompleted},
		{model.StatusDraft, ActionCancel, model.StatusCancelled},
		{model.StatusConfirmed, ActionCancel, model.StatusCancelled},
		{model.StatusInProgress, ActionCancel, model.StatusCancelled},
	}
	for _, tc := range allowed {
		got, err := Next(tc.from, tc.action)
		if err != nil || got != tc.to {
			t.Fatalf("%s from %s: got %s err=%v", tc.action, tc.from, got, err)
		}
	}

	for _, from := range []model.Status{model.StatusCompleted, model.StatusCancelled} {
		for _, action := range []Action{ActionConfirm, ActionStart, ActionComplete, ActionCancel} {
			_, err := Next(from, action)
			var serr *model.StateError
			if !errors.As(err, &serr) || serr.Status != from {
				t.Fatalf("%s from terminal %s should be a StateError, got %v", action, from, err)
			}
		}
	}

	if _, err := Next(model.StatusDraft, ActionComplete); err == nil {
		t.Fatal("draft cannot complete")
	}
}

func TestTicketStage(t *testing.T) {
	want := map[model.Status]string{
		model.StatusDraft:      "new",
		model.StatusConfirmed:  "in_progress",
		model.StatusInProgress: "in_progress",
		model.StatusCompleted:  "solved",
		model.StatusCancelled:  "cancelled",
	}
	for s, kw := range want {
		if got := TicketStage(s); got != kw {
			t.Fatalf("%s: expected %s, got %s", s, kw, got)
		}
	}
}

func TestCanEditField(t *testing.T) {
	now := time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC)
	future := model.Appointment{TechnicianID: "tech-a", Status: model.StatusConfirmed, ScheduledStart: now.Add(24 * time.Hour)}
	past := future
	past.ScheduledStart = now.Add(-24 * time.Hour)

	tech := Actor{ID: "tech-a", Technician: true}
	other := Actor{ID: "tech-b", Technician: true}
	mgr := Actor{ID: "mgr", Manager: true}

	if !tech.CanEdit(future) || other.CanEdit(future) || !mgr.CanEdit(future) {
		t.Fatal("ownership gate wrong")
	}
	lapsed := Actor{ID: "tech-a"}
	if lapsed.CanEdit(future) || lapsed.CanView(future) {
		t.Fatal("matching id without the technician capability must not edit")
	}
	if !tech.CanEditField(future, FieldScheduledStart, now) {
		t.Fatal("owner can move a future booking")
	}
	if tech.CanEditField(past, FieldScheduledStart, now) || tech.CanEditField(past, FieldTechnician, now) {
		t.Fatal("owner cannot move a past booking")
	}
	if !tech.CanEditField(past, FieldCustomer, now) {
		t.Fatal("owner can still edit other fields of a past booking")
	}
	if !mgr.CanEditField(past, FieldScheduledStart, now) {
		t.Fatal("manager can move a past booking")
	}

	completed := future
	completed.Status = model.StatusCompleted
	if !mgr.CanEditField(completed, FieldStatus, now) || mgr.CanEditField(completed, FieldCustomer, now) {
		t.Fatal("completed allows only status")
	}
	cancelled := future
	cancelled.Status = model.StatusCancelled
	if mgr.CanEditField(cancelled, FieldStatus, now) {
		t.Fatal("cancelled allows nothing")
	}
}

func TestDiffAndEffects(t *testing.T) {
	before := model.Appointment{
		Status:         model.StatusDraft,
		TechnicianID:   "tech-a",
		CustomerID:     "cust-1",
		ScheduledStart: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
		DurationHours:  1,
	}
	after := before
	after.Status = model.StatusConfirmed

	cs := Diff(before, after)
	if len(cs) != 1 || !cs.Has(FieldStatus) {
		t.Fatalf("unexpected changeset %+v", cs)
	}
	if got := cs.AuditText(); got != "Appointment updated:\n• Status: Draft → Confirmed" {
		t.Fatalf("unexpected audit text %q", got)
	}
	e := cs.Effects()
	if !e.Has(EffectTicketSync) || e.Has(EffectNotifyTechnician) {
		t.Fatalf("status change effects wrong: %b", e)
	}

	after.TechnicianID = "tech-b"
	after.DurationHours = 1.5
	cs = Diff(before, after)
	if len(cs) != 3 || !cs.Effects().Has(EffectNotifyTechnician) {
		t.Fatalf("unexpected changeset %+v", cs)
	}
	if Diff(before, before).AuditText() != "" {
		t.Fatal("no change, no audit")
	}
}

func TestCancelDefaults(t *testing.T) {
	got := CancelDefaults(model.ReasonCustomerRequest)
	if got.NotifyCustomer || !got.NotifyTechnician || !got.RefundRequired {
		t.Fatalf("customer_request defaults wrong: %+v", got)
	}
	got = CancelDefaults(model.ReasonTechnicianUnavailable)
	if !got.NotifyCustomer || got.NotifyTechnician || got.RefundRequired {
		t.Fatalf("technician_unavailable defaults wrong: %+v", got)
	}
	if got = CancelDefaults(model.ReasonRescheduled); got != (model.CancelOptions{}) {
		t.Fatalf("rescheduled defaults wrong: %+v", got)
	}
	for _, r := range []model.CancelReason{model.ReasonEmergency, model.ReasonWeather, model.ReasonOther} {
		got = CancelDefaults(r)
		if !got.NotifyCustomer || !got.NotifyTechnician || got.RefundRequired {
			t.Fatalf("%s defaults wrong: %+v", r, got)
		}
	}

	no := false
	got = Overrides{NotifyTechnician: &no}.Apply(CancelDefaults(model.ReasonCustomerRequest))
	if got.NotifyTechnician || !got.RefundRequired {
		t.Fatalf("override not applied: %+v", got)
	}
}
