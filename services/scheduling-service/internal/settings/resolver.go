package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

// Store persists settings records. Get with an empty technician id returns
// the global record; a missing record is model.ErrNotFound.
type Store interface {
	GetSettings(ctx context.Context, technicianID string) (model.Settings, error)
	ListSettings(ctx context.Context) ([]model.Settings, error)
	InsertSettings(ctx context.Context, s model.Settings) error
	UpdateSettings(ctx context.Context, s model.Settings) error
}

type Resolver struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewResolver(store Store, logger *slog.Logger, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{store: store, logger: logger, now: now}
}

// Resolve returns the technician's settings, falling back to the global
// record, and creating the default global record when neither exists.
func (r *Resolver) Resolve(ctx context.Context, technicianID string) (model.Settings, error) {
	if technicianID != "" {
		s, err := r.store.GetSettings(ctx, technicianID)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return model.Settings{}, fmt.Errorf("load technician settings: %w", err)
		}
	}

	s, err := r.store.GetSettings(ctx, "")
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.Settings{}, fmt.Errorf("load global settings: %w", err)
	}

	s = model.DefaultSettings()
	s.ID = uuid.NewString()
	s.CreatedAt = r.now()
	s.UpdatedAt = s.CreatedAt
	if err := r.store.InsertSettings(ctx, s); err != nil {
		// Another request may have created the global record first.
		if existing, gerr := r.store.GetSettings(ctx, ""); gerr == nil {
			return existing, nil
		}
		return model.Settings{}, fmt.Errorf("create default settings: %w", err)
	}
	r.logger.Info("created default scheduling settings", "settings_id", s.ID)
	return s, nil
}

// Save validates s and writes it, inserting when s.ID is empty.
func (r *Resolver) Save(ctx context.Context, s model.Settings) (model.Settings, error) {
	if err := Validate(s); err != nil {
		return model.Settings{}, err
	}
	days, _ := ParseWorkingDays(s.WorkingDays)
	s.WorkingDays = joinDays(days)

	all, err := r.store.ListSettings(ctx)
	if err != nil {
		return model.Settings{}, fmt.Errorf("list settings: %w", err)
	}
	for _, other := range all {
		if other.ID != s.ID && other.TechnicianID == s.TechnicianID {
			if s.Global() {
				return model.Settings{}, model.Invalid("technician_id", "global settings already exist")
			}
			return model.Settings{}, model.Invalid("technician_id", "settings already exist for this technician")
		}
	}

	s.UpdatedAt = r.now()
	if s.ID == "" {
		s.ID = uuid.NewString()
		s.CreatedAt = s.UpdatedAt
		if err := r.store.InsertSettings(ctx, s); err != nil {
			return model.Settings{}, fmt.Errorf("insert settings: %w", err)
		}
		return s, nil
	}
	if err := r.store.UpdateSettings(ctx, s); err != nil {
		return model.Settings{}, fmt.Errorf("update settings: %w", err)
	}
	return s, nil
}

func joinDays(days []int) string {
	out := make([]byte, 0, len(days)*2)
	for i, d := range days {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, byte('0'+d))
	}
	return string(out)
}
