// Command server runs the attendance bot HTTP API.
//
// @title        Attendance Bot API
// @version      1.0
// @description  Check-in/check-out validation over a messaging channel: geofence, fraud heuristics and employee state.
// @BasePath     /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-attendance-bot/internal/config"
	"github.com/tbourn/go-attendance-bot/internal/events"
	"github.com/tbourn/go-attendance-bot/internal/geofence"
	"github.com/tbourn/go-attendance-bot/internal/help"
	httpapi "github.com/tbourn/go-attendance-bot/internal/http"
	"github.com/tbourn/go-attendance-bot/internal/observability"
	"github.com/tbourn/go-attendance-bot/internal/repo"
	"github.com/tbourn/go-attendance-bot/internal/sysutil"
)

// version is set with -ldflags "-X main.version=...".
var version string

const shutdownTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(os.Stderr, cfg.OTEL.ServiceName, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	if err := run(cfg, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zones := geofence.DefaultZones()
	if cfg.Attendance.ZonesFile != "" {
		z, err := geofence.LoadZones(cfg.Attendance.ZonesFile)
		if err != nil {
			return err
		}
		zones = z
	}
	topics := help.DefaultTopics()
	if cfg.Attendance.HelpFile != "" {
		t, err := help.LoadMarkdown(cfg.Attendance.HelpFile)
		if err != nil {
			return err
		}
		topics = t
	}

	ver := sysutil.Version(version, os.Getenv("APP_VERSION"))
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver,
		attribute.Int("attendance.zones", len(zones)),
		attribute.String("attendance.timezone", cfg.Attendance.Location.String()),
	)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath, repo.WithLogger(logger.With().Str("component", "db").Logger()))
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	pub, err := events.NewPublisher(events.Config{
		Enabled: cfg.Kafka.Enabled,
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	}, logger.With().Str("component", "events").Logger())
	if err != nil {
		return err
	}
	pub.Start(ctx)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := pub.Stop(sctx); err != nil {
			logger.Warn().Err(err).Msg("event publisher stop")
		}
	}()

	deps := httpapi.Deps{DB: db, Zones: zones, Help: topics, Log: logger}
	if pub.Enabled() {
		deps.Events = pub
	}
	app, err := httpapi.NewApp(deps, cfg)
	if err != nil {
		return err
	}

	go app.Sweeper.Run(ctx)

	r := gin.New()
	httpapi.RegisterRoutes(r, app, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("version", ver).
			Int("zones", len(zones)).
			Bool("kafka", pub.Enabled()).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
