package scheduling

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/conflict"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/locks"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/settings"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/tickets"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Store is the appointment persistence the operations run against. Writes
// join the transaction carried on ctx.
type Store interface {
	conflict.Finder
	Get(ctx context.Context, id string) (model.Appointment, error)
	GetForUpdate(ctx context.Context, id string) (model.Appointment, error)
	Insert(ctx context.Context, a model.Appointment) error
	Update(ctx context.Context, a model.Appointment) error
	SetTicket(ctx context.Context, id, ticketID string) error
	List(ctx context.Context, f model.ListFilter) ([]model.Appointment, error)
	CountOnDay(ctx context.Context, technicianID string, dayStart, dayEnd time.Time, excludeID string) (int, error)
	MarkConfirmationSent(ctx context.Context, id string) (bool, error)
	AppendHistory(ctx context.Context, e model.HistoryEntry) error
	ListHistory(ctx context.Context, appointmentID string) ([]model.HistoryEntry, error)
	CountByStatus(ctx context.Context, from, to time.Time) (map[model.Status]int, error)
	CountCancellations(ctx context.Context, from, to time.Time) (map[model.CancelReason]int, error)
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Tickets interface {
	CreateTicket(ctx context.Context, t tickets.NewTicket) (string, error)
	SetTicketStage(ctx context.Context, ticketID, keyword string) (bool, error)
}

type Notifier interface {
	SendTemplate(ctx context.Context, tpl notify.Template, appt model.Appointment, vars map[string]string) error
	NotifyUser(ctx context.Context, userID string, appt model.Appointment, text string) error
	RequestFollowUp(ctx context.Context, role string, appt model.Appointment, note string) error
	Lifecycle(ctx context.Context, kind string, appt model.Appointment) error
}

type Identity interface {
	HasCapability(ctx context.Context, userID string, c model.Capability) (bool, error)
	ListWithCapability(ctx context.Context, c model.Capability) ([]string, error)
}

type Sequence interface {
	NextReference(ctx context.Context) (string, error)
}

type Config struct {
	// EnforceWorkingHours turns settings policy violations into errors
	// instead of warnings.
	EnforceWorkingHours bool
	Location            *time.Location
	// FollowUpRole receives refund tasks.
	FollowUpRole string
}

type Deps struct {
	Store    Store
	Tx       TxRunner
	Settings *settings.Resolver
	Tickets  Tickets
	Notifier Notifier
	Identity Identity
	Sequence Sequence
	Locker   locks.Locker
	Logger   *slog.Logger
	Now      func() time.Time
}

type Service struct {
	store    Store
	tx       TxRunner
	detector *conflict.Detector
	settings *settings.Resolver
	tickets  Tickets
	notifier Notifier
	identity Identity
	seq      Sequence
	locker   locks.Locker
	logger   *slog.Logger
	now      func() time.Time
	cfg      Config
	tracer   trace.Tracer
}

func New(d Deps, cfg Config) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.FollowUpRole == "" {
		cfg.FollowUpRole = "billing"
	}
	if d.Tickets == nil {
		d.Tickets = tickets.NoopClient{}
	}
	return &Service{
		store:    d.Store,
		tx:       d.Tx,
		detector: conflict.NewDetector(d.Store),
		settings: d.Settings,
		tickets:  d.Tickets,
		notifier: d.Notifier,
		identity: d.Identity,
		seq:      d.Sequence,
		locker:   d.Locker,
		logger:   d.Logger,
		now:      d.Now,
		cfg:      cfg,
		tracer:   otel.Tracer("scheduling"),
	}
}

// Now is the service clock in the configured location.
func (s *Service) Now() time.Time {
	return s.now().In(s.cfg.Location)
}

func (s *Service) Detector() *conflict.Detector {
	return s.detector
}
