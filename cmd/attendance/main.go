package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"github.com/example/geo-attendance/internal/application"
	"github.com/example/geo-attendance/internal/attendance"
	"github.com/example/geo-attendance/internal/config"
	httptransport "github.com/example/geo-attendance/internal/http"
	"github.com/example/geo-attendance/internal/logging"
	"github.com/example/geo-attendance/internal/persistence"
	"github.com/example/geo-attendance/internal/persistence/postgres"
	"github.com/example/geo-attendance/internal/persistence/redisstore"
	"github.com/example/geo-attendance/internal/persistence/sqlite"
	"github.com/example/geo-attendance/internal/qr"
	"github.com/example/geo-attendance/internal/report"
)

const (
	shutdownTimeout = 10 * time.Second
	startupTimeout  = 15 * time.Second
)

func main() {
	bootstrap := logging.New(os.Stdout, slog.LevelInfo)
	if _, err := config.LoadDotEnv(); err != nil {
		bootstrap.Error("failed to load .env file", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("attendance server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	sinks, closeSinks, err := openSinks(startCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer closeSinks()

	mailer, err := newMailer(cfg)
	if err != nil {
		return err
	}

	svc := newService(cfg, sinks, mailer, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           newHandler(svc, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("attendance server listening",
		"addr", ln.Addr().String(),
		"export_policy", string(cfg.ExportPolicy),
		"sinks", sinks.Len(),
		"mailer", mailer != nil,
	)
	return serve(ctx, server, ln, svc, logger)
}

// serve runs server on ln until ctx is done. It returns only after Shutdown
// has finished the in-flight requests and the service has drained the record
// deliveries they started, so the caller may close the sinks afterwards.
func serve(ctx context.Context, server *http.Server, ln net.Listener, svc *application.AttendanceService, logger *slog.Logger) error {
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	// Serve returns as soon as Shutdown starts; handlers may still be running.
	<-shutdownDone

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Drain(drainCtx); err != nil {
		return fmt.Errorf("record deliveries still pending at shutdown: %w", err)
	}
	logger.Info("attendance server stopped")
	return nil
}

func newService(cfg config.Config, sinks *application.MultiSink, mailer application.ReportMailer, logger *slog.Logger) *application.AttendanceService {
	manager := attendance.NewManager(uuid.NewString, time.Now)
	renderer := qr.NewRenderer(qr.WithSize(cfg.QRSize))
	options := application.AttendanceOptions{
		PublicBaseURL: cfg.PublicBaseURL,
		ExportPolicy:  cfg.ExportPolicy,
		Location:      cfg.Location,
		SinkTimeout:   cfg.SinkTimeout,
	}
	if sinks.Readable() {
		options.History = sinks
	}
	return application.NewAttendanceServiceWithLogger(manager, renderer, sinks, mailer, options, logger)
}

func newHandler(svc *application.AttendanceService, cfg config.Config, logger *slog.Logger) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Attendance: httptransport.NewAttendanceHandler(svc, cfg.Location, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})
}

// openSinks connects every configured record store. The returned function
// closes whatever was opened.
func openSinks(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application.MultiSink, func(), error) {
	sinks := application.NewMultiSink()
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*application.MultiSink, func(), error) {
		closeAll()
		return nil, func() {}, err
	}

	if cfg.SQLiteDSN != "" {
		storage, err := sqlite.OpenWithConfig(sqlite.DefaultConfig(cfg.SQLiteDSN), logger)
		if err != nil {
			return fail(fmt.Errorf("open sqlite: %w", err))
		}
		closers = append(closers, func() {
			if err := storage.Close(); err != nil {
				logger.Error("failed to close sqlite", "error", err)
			}
		})
		if err := storage.Migrate(ctx); err != nil {
			return fail(fmt.Errorf("migrate sqlite: %w", err))
		}
		sinks.Add("sqlite", newRecordSinkAdapter(storage))
	}

	if cfg.DatabaseURL != "" {
		store, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.DefaultPoolConfig())
		if err != nil {
			return fail(fmt.Errorf("open postgres: %w", err))
		}
		closers = append(closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			return fail(fmt.Errorf("migrate postgres: %w", err))
		}
		sinks.Add("postgres", newRecordSinkAdapter(store))
	}

	if cfg.RedisURL != "" {
		client, err := redisstore.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("open redis: %w", err))
		}
		store := redisstore.New(client, redisstore.Options{})
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close redis", "error", err)
			}
		})
		sinks.Add("redis", newRecordSinkAdapter(store))
	}

	return sinks, closeAll, nil
}

func newMailer(cfg config.Config) (application.ReportMailer, error) {
	if !cfg.MailerEnabled() {
		return nil, nil
	}
	mailer, err := report.NewSendGridMailer(cfg.SendGridAPIKey, report.Config{
		From:       cfg.ReportFrom,
		Recipients: cfg.ReportTo,
	})
	if err != nil {
		return nil, fmt.Errorf("configure report mailer: %w", err)
	}
	return mailer, nil
}

// recordSinkAdapter stores sink records in a persistence.RecordRepository and
// reads them back for the history endpoint.
type recordSinkAdapter struct {
	repo persistence.RecordRepository
}

func newRecordSinkAdapter(repo persistence.RecordRepository) *recordSinkAdapter {
	return &recordSinkAdapter{repo: repo}
}

func (a *recordSinkAdapter) AppendRecord(ctx context.Context, record application.SinkRecord) error {
	return a.repo.AppendRecord(ctx, persistence.AttendanceRecord{
		SessionID:      record.SessionID,
		Name:           record.Name,
		RollNumber:     record.RollNumber,
		DeviceDigest:   record.DeviceDigest,
		DistanceMeters: record.DistanceMeters,
		SubmittedAt:    record.SubmittedAt,
	})
}

func (a *recordSinkAdapter) ListRecords(ctx context.Context, sessionID string) ([]application.SinkRecord, error) {
	stored, err := a.repo.ListRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	records := make([]application.SinkRecord, 0, len(stored))
	for _, record := range stored {
		records = append(records, application.SinkRecord{
			SessionID:      record.SessionID,
			Name:           record.Name,
			RollNumber:     record.RollNumber,
			DeviceDigest:   record.DeviceDigest,
			DistanceMeters: record.DistanceMeters,
			SubmittedAt:    record.SubmittedAt,
		})
	}
	return records, nil
}
