package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

type sliceFinder []model.Appointment

func (f sliceFinder) ListBlocking(_ context.Context, _ string, _, _ time.Time) ([]model.Appointment, error) {
	return f, nil
}

func at(h, m int) time.Time {
	return time.Date(2024, 1, 10, h, m, 0, 0, time.UTC)
}

func booking(id, tech string, start time.Time, hours float64, status model.Status) model.Appointment {
	return model.Appointment{
		ID:             id,
		Reference:      "APT-" + id,
		TechnicianID:   tech,
		ScheduledStart: start,
		DurationHours:  hours,
		Status:         status,
		Active:         true,
	}
}

func TestFindHalfOpenOverlap(t *testing.T) {
	existing := booking("1", "tech-a", at(9, 0), 1, model.StatusConfirmed)
	d := NewDetector(sliceFinder{existing})

	got, err := d.Find(context.Background(), "tech-a", at(9, 30), at(10, 30), "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected conflict with 1, got %+v", got)
	}

	got, err = d.Find(context.Background(), "tech-a", at(10, 0), at(11, 0), "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("touching endpoints must not conflict, got %+v", got)
	}
}

func TestFindIgnoresNonBlocking(t *testing.T) {
	archived := booking("2", "tech-a", at(9, 0), 1, model.StatusConfirmed)
	archived.Active = false
	d := NewDetector(sliceFinder{
		booking("1", "tech-a", at(9, 0), 1, model.StatusDraft),
		archived,
		booking("3", "tech-a", at(9, 0), 1, model.StatusCancelled),
		booking("4", "tech-a", at(9, 0), 1, model.StatusCompleted),
		booking("5", "tech-b", at(9, 0), 1, model.StatusConfirmed),
		booking("6", "tech-a", at(9, 0), 1, model.StatusInProgress),
	})

	got, err := d.Find(context.Background(), "tech-a", at(9, 0), at(10, 0), "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].ID != "6" {
		t.Fatalf("only the in-progress booking blocks, got %+v", got)
	}
}

func TestFindExcludesSelf(t *testing.T) {
	self := booking("1", "tech-a", at(9, 0), 2, model.StatusConfirmed)
	d := NewDetector(sliceFinder{self})

	got, err := d.Find(context.Background(), "tech-a", at(9, 0), at(11, 0), "1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("excluded appointment returned: %+v", got)
	}
}

func TestCheckReturnsConflictError(t *testing.T) {
	d := NewDetector(sliceFinder{booking("1", "tech-a", at(9, 0), 1, model.StatusConfirmed)})

	err := d.Check(context.Background(), "tech-a", at(9, 30), at(10, 30), "")
	var cerr *model.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if cerr.TechnicianID != "tech-a" || len(cerr.Conflicts) != 1 || cerr.Conflicts[0].Reference != "APT-1" {
		t.Fatalf("unexpected conflict payload: %+v", cerr)
	}
	if err := d.Check(context.Background(), "tech-a", at(10, 0), at(11, 0), ""); err != nil {
		t.Fatalf("expected no conflict, got %v", err)
	}
}
