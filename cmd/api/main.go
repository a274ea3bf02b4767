package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fishcharter/internal/api"
	"fishcharter/internal/clock"
	"fishcharter/internal/config"
	"fishcharter/internal/database"
	"fishcharter/internal/domain"
	"fishcharter/internal/events"
	"fishcharter/internal/export"
	"fishcharter/internal/google"
	"fishcharter/internal/logging"
	"fishcharter/internal/metrics"
	"fishcharter/internal/models"
	"fishcharter/internal/notify"
	"fishcharter/internal/payment"
	"fishcharter/internal/repository"
	"fishcharter/internal/service"
	"fishcharter/internal/storage/postgres"
	"fishcharter/internal/tracing"
	"fishcharter/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	exportOnly := flag.Bool("export", false, "write all bookings to an xlsx file under exports.path and exit")
	flag.Parse()

	if err := run(*exportOnly); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// store is what the binary needs from either backend.
type store interface {
	domain.SlotStore
	worker.TaskStore
}

func run(exportOnly bool) error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := loadCatalog(cfg.Booking.CatalogPath, logger)
	if err != nil {
		return err
	}

	db, sqliteDB, err := initStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if exportOnly {
		return exportBookings(ctx, db, cfg.Exports.Path, logger)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App)
	if err != nil {
		logger.Warn().Err(err).Msg("tracing init failed, continuing without traces")
		shutdownTracing = func(context.Context) error { return nil }
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	guard := initGuard(redisClient, logger)

	gateway, err := payment.New(cfg.Payment, logging.Component(logger, "payment"))
	if err != nil {
		return fmt.Errorf("init payment gateway: %w", err)
	}

	bus := events.NewEventBus()
	bus.OnError(func(e *events.Event, err error) {
		logger.Error().Err(err).Str("event", e.Type).Msg("event handler failed")
	})

	if cfg.Events.AMQP.URL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.Events.AMQP.URL, cfg.Events.AMQP.Exchange)
		if err != nil {
			logger.Warn().Err(err).Msg("amqp connection failed, events stay in-process")
		} else {
			defer publisher.Close()
			publisher.Forward(bus, events.AllTypes...)
			logger.Info().Str("exchange", cfg.Events.AMQP.Exchange).Msg("forwarding booking events to amqp")
		}
	}

	syncWorker := initSheetsSync(ctx, cfg, db, redisClient, logger)
	notifier := initTelegram(cfg, logger)
	sideEffects := service.NewSideEffects(db, syncWorker, notifier, logging.Component(logger, "side-effects"))
	sideEffects.Register(bus)

	clk := clock.NewSystem()
	if cfg.Booking.Sweeper.Enabled {
		service.NewHoldSweeper(db, clk, cfg.Booking.Sweeper.Interval, logging.Component(logger, "sweeper")).Start(ctx)
	}
	if cfg.Backup.Enabled && sqliteDB != nil {
		database.NewBackupService(sqliteDB, cfg.Backup, logging.Component(logger, "backup")).Start(ctx)
	}

	pricing := service.NewPriceCalculator(catalog)
	svc := api.Services{
		Availability:  service.NewAvailabilityChecker(db, clk, logging.Component(logger, "availability")),
		Reservations:  service.NewReservationManager(db, guard, bus, pricing, clk, cfg.Booking, logging.Component(logger, "reservations")),
		Confirmations: service.NewConfirmationManager(db, gateway, guard, bus, clk, cfg.Booking, logging.Component(logger, "confirmations")),
		Direct:        service.NewDirectBookingService(db, gateway, bus, clk, cfg.Booking, logging.Component(logger, "direct")),
		Pricing:       pricing,
		Store:         db,
	}
	if redisClient != nil {
		svc.Readiness = append(svc.Readiness, api.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return repository.Ping(ctx, redisClient) },
		})
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, svc, logging.Component(logger, "grpc"))
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}
	httpServer := api.NewHTTPServer(&cfg.API, svc, logging.Component(logger, "http"))

	startMetrics(ctx, cfg, logger)

	err = startServers(ctx, grpcServer, httpServer, cfg, logger)

	sideEffects.Wait()
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn().Err(err).Msg("tracing shutdown")
	}
	return err
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

// loadCatalog reads the price table; a missing file falls back to the built-in one.
func loadCatalog(path string, logger *zerolog.Logger) (models.Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Str("catalog_path", path).Msg("catalog file not found, using built-in catalog")
		return models.DefaultCatalog(), nil
	}
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", path).Msg("read catalog")
		return models.Catalog{}, err
	}

	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Str("catalog_path", path).Msg("parse catalog")
		return models.Catalog{}, err
	}
	if err := catalog.Validate(); err != nil {
		return models.Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}

	logger.Info().Int("services", len(catalog.Services)).Int("addons", len(catalog.Addons)).Msg("catalog loaded")
	return catalog, nil
}

// initStore opens the configured backend. The sqlite handle is returned
// separately for the backup service.
func initStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (store, *database.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := postgres.Open(ctx, cfg.Database.Postgres.DSN(), int32(cfg.Database.Postgres.MaxConnections), logging.Component(logger, "postgres"))
		if err != nil {
			logger.Error().Err(err).Msg("init postgres")
			return nil, nil, err
		}
		return pg, nil, nil
	default:
		db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "sqlite"))
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, nil, err
		}
		return db, db, nil
	}
}

func exportBookings(ctx context.Context, db domain.SlotStore, dir string, logger *zerolog.Logger) error {
	bookings, err := db.List(ctx, domain.ListFilter{})
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("20060102_150405")))
	if err := export.SaveBookings(path, bookings); err != nil {
		return err
	}
	logger.Info().Str("path", path).Int("bookings", len(bookings)).Msg("bookings exported")
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initGuard prefers Redis and falls back to process memory when it is absent
// or stops answering.
func initGuard(redisClient *redis.Client, logger *zerolog.Logger) domain.GuardRepository {
	memory := repository.NewMemoryGuard()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverGuard(repository.NewRedisGuard(redisClient), memory, logging.Component(logger, "guard"))
}

func initSheetsSync(ctx context.Context, cfg *config.Config, tasks worker.TaskStore, redisClient *redis.Client, logger *zerolog.Logger) domain.SyncWorker {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID, logging.Component(logger, "sheets"))
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	w := worker.NewSheetsWorker(tasks, sheetsService, redisClient, worker.DefaultRetryPolicy(), logger)
	w.Start(ctx)

	logger.Info().Msg("google sheets connected")
	return w
}

func initTelegram(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	tg := cfg.Notify.Telegram
	if !tg.Enabled {
		return nil
	}

	n, err := notify.NewTelegram(tg.BotToken, tg.ChatID, tg.Debug, logging.Component(logger, "telegram"))
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return nil
	}
	return n
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 2)

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	if cfg.API.HTTP.Enabled {
		go func() {
			if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	event := logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("http_enabled", cfg.API.HTTP.Enabled)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	event.Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
