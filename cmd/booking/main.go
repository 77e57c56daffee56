// booking serves the campus room booking API.
//
// Configuration comes from BOOKING_* environment variables, optionally
// preloaded from --env-file. --seed-rooms upserts a YAML room catalog before
// the server starts; combined with --migrate-only the process exits after
// migrating and seeding.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/config"
	"github.com/example/campus-booking/internal/directory"
	httptransport "github.com/example/campus-booking/internal/http"
	"github.com/example/campus-booking/internal/logging"
	"github.com/example/campus-booking/internal/notify"
	"github.com/example/campus-booking/internal/persistence"
	"github.com/example/campus-booking/internal/persistence/appstore"
	"github.com/example/campus-booking/internal/persistence/postgres"
	"github.com/example/campus-booking/internal/persistence/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	envFile     string
	seedRooms   string
	migrateOnly bool
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("booking", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "file of KEY=VALUE pairs loaded before reading the environment")
	flagSet.StringVar(&opts.seedRooms, "seed-rooms", "", "YAML room catalog to upsert at startup")
	flagSet.BoolVar(&opts.migrateOnly, "migrate-only", false, "apply migrations (and seed rooms) then exit")
	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, stdout)
	if err != nil {
		return err
	}

	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(stdout, cfg.LogLevel, cfg.LogFormat)
	ctx = logging.ContextWithLogger(ctx, logger)

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if opts.seedRooms != "" {
		inputs, err := loadSeedFile(opts.seedRooms)
		if err != nil {
			return err
		}
		rooms, err := app.rooms.SeedRooms(ctx, inputs)
		if err != nil {
			return fmt.Errorf("seed rooms: %w", err)
		}
		logger.Info("room catalog seeded", "path", opts.seedRooms, "room_count", len(rooms))
	}

	if opts.migrateOnly {
		logger.Info("migrations applied, exiting")
		return nil
	}

	return serve(ctx, cfg, app.handler, logger)
}

func serve(ctx context.Context, cfg config.Config, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening", "addr", server.Addr, "store", cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("booking API stopped")
	return nil
}

// app is the fully wired service graph.
type app struct {
	handler  http.Handler
	bookings *application.BookingService
	rooms    *application.RoomService
	closers  []func() error
	logger   *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	bookingRepo, roomRepo, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rooms, err := directory.New(roomRepo, cfg.RoomCacheSize, logger)
	if err != nil {
		return nil, err
	}
	roomCatalog := appstore.NewRoomCatalog(rooms)
	bookingStore := appstore.NewBookingStore(bookingRepo)

	notifier, err := a.notifier(cfg)
	if err != nil {
		return nil, err
	}

	retryCfg := persistence.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.TxMaxRetries
	retryCfg.InitialDelay = cfg.TxRetryDelay

	now := func() time.Time { return time.Now().UTC() }

	a.bookings = application.NewBookingServiceWithConfig(bookingStore, roomCatalog, notifier, uuid.NewString, now, application.BookingServiceConfig{
		Retrier:             persistence.NewRetryHelper(retryCfg),
		NotifyTimeout:       cfg.NotifyTimeout,
		EndingSoonThreshold: cfg.EndingSoon,
		Logger:              logger,
	})
	a.rooms = application.NewRoomServiceWithLogger(roomCatalog, bookingStore, uuid.NewString, now, logger).
		WithEndingSoonThreshold(cfg.EndingSoon)

	verifier := httptransport.NewIdentityVerifier(cfg.IdentitySecret, cfg.IdentityIssuer, time.Now)

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Bookings:   httptransport.NewBookingHandler(a.bookings, logger),
		Rooms:      httptransport.NewRoomHandler(a.rooms, a.bookings, logger),
		Identity:   httptransport.RequireIdentity(verifier, logger),
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg config.Config) (persistence.BookingRepository, persistence.RoomRepository, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		return store.Bookings, store.Rooms, nil
	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		store, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLitePath))
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		return store.Bookings, store.Rooms, nil
	}
}

func (a *app) notifier(cfg config.Config) (application.Notifier, error) {
	notifiers := notify.Multi{notify.NewLogNotifier(a.logger)}
	if cfg.AMQPURL == "" {
		return notifiers, nil
	}
	publisher, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)
	return append(notifiers, publisher), nil
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}
