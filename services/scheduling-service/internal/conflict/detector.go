package conflict

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

// Finder returns a technician's active bookings in blocking statuses that may
// intersect [start,end). Implementations may over-fetch; Detector re-applies
// the overlap rule.
type Finder interface {
	ListBlocking(ctx context.Context, technicianID string, start, end time.Time) ([]model.Appointment, error)
}

type Detector struct {
	finder Finder
}

func NewDetector(finder Finder) *Detector {
	return &Detector{finder: finder}
}

// Find returns the bookings that collide with [start,end) for technicianID.
// excludeID, when set, is never part of the result.
func (d *Detector) Find(ctx context.Context, technicianID string, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	if technicianID == "" || !end.After(start) {
		return nil, nil
	}
	candidates, err := d.finder.ListBlocking(ctx, technicianID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list blocking appointments: %w", err)
	}
	return Filter(candidates, technicianID, start, end, excludeID), nil
}

// Check is Find as a hard validation: any collision becomes a ConflictError.
func (d *Detector) Check(ctx context.Context, technicianID string, start, end time.Time, excludeID string) error {
	found, err := d.Find(ctx, technicianID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(found) > 0 {
		return &model.ConflictError{TechnicianID: technicianID, Conflicts: found}
	}
	return nil
}

// Filter keeps the appointments that block [start,end) for technicianID.
func Filter(appts []model.Appointment, technicianID string, start, end time.Time, excludeID string) []model.Appointment {
	var out []model.Appointment
	for _, a := range appts {
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if a.TechnicianID != technicianID || !a.Active || !a.Status.Blocking() {
			continue
		}
		if a.Overlaps(start, end) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.Before(out[j].ScheduledStart) })
	return out
}
