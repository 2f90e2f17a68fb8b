package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/supportsched/libs/auth"
	"github.com/md-rashed-zaman/supportsched/libs/config"
	"github.com/md-rashed-zaman/supportsched/libs/db"
	"github.com/md-rashed-zaman/supportsched/libs/grpcx"
	"github.com/md-rashed-zaman/supportsched/libs/httpx"
	"github.com/md-rashed-zaman/supportsched/libs/kafkax"
	otelx "github.com/md-rashed-zaman/supportsched/libs/otel"
	"github.com/md-rashed-zaman/supportsched/libs/runtime"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/locks"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/scheduling"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/settings"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/sweep"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/tickets"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/migrations"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8090")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	loc, err := config.Location("SCHEDULING_TIMEZONE", "UTC")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, db.PoolConfig{MaxConns: int32(config.Int("DB_MAX_CONNS", 10))})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("DB_AUTO_MIGRATE", false) {
		if err := migrations.Apply(ctx, pool, logger); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	// Per-technician locks and the rate limiter share Redis when it is
	// configured; a single replica can run without it.
	var (
		locker      locks.Locker = locks.NewLocal()
		rateLimiter httpx.Middleware
		perMinute   = config.Int("RATE_LIMIT_PER_MINUTE", 120)
	)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		locker = locks.NewRedis(rdb, locks.RedisConfig{
			Prefix: service + ":lock",
			TTL:    config.Seconds("LOCK_TTL_SECONDS", 15*time.Second),
			Wait:   config.Seconds("LOCK_WAIT_SECONDS", 5*time.Second),
		})
		rateLimiter = httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, service+":rl", httpx.ClientKey).
			Middleware(logger, true)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: locks.ReadyCheck(rdb)})
		logger.Info("using redis locks", "addr", addr)
	} else {
		rateLimiter = httpx.NewRateLimiter(perMinute, time.Minute, httpx.ClientKey).Middleware()
		logger.Warn("REDIS_ADDR not set; technician locks are process local")
	}

	appointments := storage.NewAppointmentRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	notifier := notify.NewOutbox(outboxRepo, nil)

	var writer outbox.MessageWriter
	if brokers := config.List("KAFKA_BROKERS", ""); len(brokers) > 0 {
		kw := kafkax.NewWriter(brokers, "")
		defer func() { _ = kw.Close() }()
		writer = kw
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Optional: true, Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox events stay queued")
	}
	publisher := outbox.NewPublisher(pool, outboxRepo, writer, logger, outbox.PublisherConfig{
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	var helpdesk scheduling.Tickets = tickets.NoopClient{}
	if url := config.String("HELPDESK_URL", ""); url != "" {
		helpdesk = tickets.NewHTTPClient(url, config.String("HELPDESK_TOKEN", ""))
	}

	resolver := settings.NewResolver(storage.NewSettingsRepository(pool), logger, nil)
	svc := scheduling.New(scheduling.Deps{
		Store:    appointments,
		Tx:       pool,
		Settings: resolver,
		Tickets:  helpdesk,
		Notifier: notifier,
		Identity: storage.NewCapabilityRepository(pool),
		Sequence: appointments,
		Locker:   locker,
		Logger:   logger,
	}, scheduling.Config{
		EnforceWorkingHours: config.Bool("ENFORCE_WORKING_HOURS", false),
		Location:            loc,
		FollowUpRole:        config.String("REFUND_FOLLOWUP_ROLE", "billing"),
	})

	sweeper := sweep.New(appointments, pool, notifier, svc, logger, nil, sweep.Config{
		ArchiveAfter: time.Duration(config.Int("ARCHIVE_AFTER_DAYS", 180)) * 24 * time.Hour,
	})
	def := sweep.DefaultSchedule()
	scheduler, err := sweep.NewScheduler(sweeper, logger, sweep.Schedule{
		Reminders:   config.String("REMINDER_SWEEP_CRON", def.Reminders),
		Archive:     config.String("ARCHIVE_SWEEP_CRON", def.Archive),
		WeeklyStats: config.String("WEEKLY_STATS_CRON", def.WeeklyStats),
		Timeout:     config.Seconds("SWEEP_TIMEOUT_SECONDS", def.Timeout),
		Location:    loc,
	})
	if err != nil {
		logger.Error("sweep schedule invalid", "err", err)
		panic(err)
	}
	go scheduler.Run(ctx)

	grpcServer := grpcx.NewServer(logger)
	grpcServer.SetServing("", true)
	go func() {
		if err := grpcServer.Run(ctx, ":"+grpcPort, 10*time.Second); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("grpc server error", "err", err)
		}
	}()

	api := http.NewServeMux()
	handlers.New(svc, resolver, logger).Register(api)
	protected := httpx.Chain(api,
		auth.RequireBearer(jwtSecret, nil),
		httpx.OnlyMutations(rateLimiter),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 15*time.Second)),
	)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/v1/", protected)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.ServeHTTP(ctx, srv, logger, 10*time.Second)
	grpcServer.SetServing("", false)
	logger.Info("scheduling service stopped")
}
