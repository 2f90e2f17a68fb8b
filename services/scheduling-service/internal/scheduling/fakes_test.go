package scheduling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/locks"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/settings"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/tickets"
)

var testNow = time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC) // Tuesday

func at(day, hour, min int) time.Time {
	return time.Date(2024, 1, day, hour, min, 0, 0, time.UTC)
}

// memStore keeps appointments in a map. WithTx snapshots the map and
// restores it when fn fails.
type memStore struct {
	mu      sync.Mutex
	appts   map[string]model.Appointment
	history []model.HistoryEntry
	seq     int
}

func newMemStore() *memStore {
	return &memStore{appts: map[string]model.Appointment{}}
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snapshot := maps.Clone(m.appts)
	historyLen := len(m.history)
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.appts = snapshot
		m.history = m.history[:historyLen]
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) ListBlocking(_ context.Context, technicianID string, start, end time.Time) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appts {
		if a.TechnicianID == technicianID && a.Active && a.Status.Blocking() && a.Overlaps(start, end) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	return a, nil
}

func (m *memStore) GetForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	return m.Get(ctx, id)
}

func (m *memStore) Insert(_ context.Context, a model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appts[a.ID] = a
	return nil
}

func (m *memStore) Update(_ context.Context, a model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[a.ID]; !ok {
		return model.ErrNotFound
	}
	m.appts[a.ID] = a
	return nil
}

func (m *memStore) SetTicket(_ context.Context, id, ticketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.appts[id]
	a.TicketID = ticketID
	m.appts[id] = a
	return nil
}

func (m *memStore) List(_ context.Context, f model.ListFilter) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appts {
		if f.TechnicianID != "" && a.TechnicianID != f.TechnicianID {
			continue
		}
		if !f.IncludeArchived && !a.Active {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.Before(out[j].ScheduledStart) })
	return out, nil
}

func (m *memStore) CountOnDay(_ context.Context, technicianID string, dayStart, dayEnd time.Time, excludeID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appts {
		if a.TechnicianID == technicianID && a.ID != excludeID && a.Active && a.Status != model.StatusCancelled &&
			!a.ScheduledStart.Before(dayStart) && a.ScheduledStart.Before(dayEnd) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) MarkConfirmationSent(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.appts[id]
	if a.ConfirmationSent {
		return false, nil
	}
	a.ConfirmationSent = true
	m.appts[id] = a
	return true, nil
}

func (m *memStore) AppendHistory(_ context.Context, e model.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, e)
	return nil
}

func (m *memStore) ListHistory(_ context.Context, id string) ([]model.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.HistoryEntry
	for _, e := range m.history {
		if e.AppointmentID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) CountByStatus(_ context.Context, from, to time.Time) (map[model.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.Status]int{}
	for _, a := range m.appts {
		if !a.ScheduledStart.Before(from) && !a.ScheduledStart.After(to) {
			out[a.Status]++
		}
	}
	return out, nil
}

func (m *memStore) CountCancellations(_ context.Context, from, to time.Time) (map[model.CancelReason]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.CancelReason]int{}
	for _, a := range m.appts {
		if a.Status == model.StatusCancelled && !a.ScheduledStart.Before(from) && a.ScheduledStart.Before(to) {
			out[a.CancelReason]++
		}
	}
	return out, nil
}

func (m *memStore) NextReference(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return fmt.Sprintf("APT%05d", m.seq), nil
}

// seed stores a ready-made appointment.
func (m *memStore) seed(id, tech string, start time.Time, hours float64, status model.Status) model.Appointment {
	a := model.Appointment{
		ID:             id,
		Reference:      "APT-" + id,
		CustomerID:     "cust-" + id,
		TechnicianID:   tech,
		TicketID:       "T-" + id,
		ScheduledStart: start,
		DurationHours:  hours,
		Status:         status,
		Priority:       model.PriorityNormal,
		Active:         true,
	}
	m.appts[id] = a
	return a
}

type settingsStore struct {
	mu      sync.Mutex
	records []model.Settings
}

func (s *settingsStore) GetSettings(_ context.Context, technicianID string) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.TechnicianID == technicianID {
			return r, nil
		}
	}
	return model.Settings{}, model.ErrNotFound
}

func (s *settingsStore) ListSettings(context.Context) ([]model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Settings(nil), s.records...), nil
}

func (s *settingsStore) InsertSettings(_ context.Context, r model.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *settingsStore) UpdateSettings(context.Context, model.Settings) error { return nil }

type fakeTickets struct {
	mu      sync.Mutex
	created []tickets.NewTicket
	stages  []string
	err     error
}

func (f *fakeTickets) CreateTicket(_ context.Context, t tickets.NewTicket) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, t)
	return fmt.Sprintf("T%d", len(f.created)), nil
}

func (f *fakeTickets) SetTicketStage(_ context.Context, ticketID, keyword string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.stages = append(f.stages, ticketID+":"+keyword)
	return keyword != "solved", nil
}

type sentEmail struct {
	Template notify.Template
	ApptID   string
	Vars     map[string]string
}

type userNote struct {
	UserID string
	Text   string
}

type captureNotifier struct {
	mu        sync.Mutex
	emails    []sentEmail
	notes     []userNote
	followUps []string
	events    []string
}

func (c *captureNotifier) SendTemplate(_ context.Context, tpl notify.Template, appt model.Appointment, vars map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emails = append(c.emails, sentEmail{Template: tpl, ApptID: appt.ID, Vars: vars})
	return nil
}

func (c *captureNotifier) NotifyUser(_ context.Context, userID string, _ model.Appointment, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, userNote{UserID: userID, Text: text})
	return nil
}

func (c *captureNotifier) RequestFollowUp(_ context.Context, role string, _ model.Appointment, note string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.followUps = append(c.followUps, role+": "+note)
	return nil
}

func (c *captureNotifier) Lifecycle(_ context.Context, kind string, _ model.Appointment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, kind)
	return nil
}

func (c *captureNotifier) templates() []notify.Template {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notify.Template
	for _, e := range c.emails {
		out = append(out, e.Template)
	}
	return out
}

type fakeIdentity map[string][]model.Capability

func (f fakeIdentity) HasCapability(_ context.Context, userID string, c model.Capability) (bool, error) {
	for _, have := range f[userID] {
		if have == c {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeIdentity) ListWithCapability(_ context.Context, c model.Capability) ([]string, error) {
	var out []string
	for id, caps := range f {
		for _, have := range caps {
			if have == c {
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

type harness struct {
	svc      *Service
	store    *memStore
	tickets  *fakeTickets
	notifier *captureNotifier
	settings *settingsStore
}

var (
	techA   = lifecycle.Actor{ID: "tech-a", Technician: true}
	techB   = lifecycle.Actor{ID: "tech-b", Technician: true}
	manager = lifecycle.Actor{ID: "mgr", Manager: true}
)

func newHarness(cfg Config) *harness {
	h := &harness{
		store:    newMemStore(),
		tickets:  &fakeTickets{},
		notifier: &captureNotifier{},
		settings: &settingsStore{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return testNow }
	h.svc = New(Deps{
		Store:    h.store,
		Tx:       h.store,
		Settings: settings.NewResolver(h.settings, logger, now),
		Tickets:  h.tickets,
		Notifier: h.notifier,
		Identity: fakeIdentity{
			"tech-a": {model.CapabilityTechnician},
			"tech-b": {model.CapabilityTechnician},
			"tech-c": {model.CapabilityTechnician},
			"mgr":    {model.CapabilityManager},
		},
		Sequence: h.store,
		Locker:   locks.NewLocal(),
		Logger:   logger,
		Now:      now,
	}, cfg)
	return h
}

func hours(h float64) *float64 { return &h }

func boolp(b bool) *bool { return &b }

func isErr[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
