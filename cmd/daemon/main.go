// SPDX-License-Identifier: MIT

// camp-ussd serves the Camp Sarafrika USSD registration menu: gateway webhook
// in, CON/END text out, with Redis sessions and a SQLite registration store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sarafrika/camp-ussd/internal/api"
	"github.com/sarafrika/camp-ussd/internal/config"
	"github.com/sarafrika/camp-ussd/internal/health"
	applog "github.com/sarafrika/camp-ussd/internal/log"
	"github.com/sarafrika/camp-ussd/internal/payment"
	"github.com/sarafrika/camp-ussd/internal/session"
	"github.com/sarafrika/camp-ussd/internal/sms"
	"github.com/sarafrika/camp-ussd/internal/store"
	"github.com/sarafrika/camp-ussd/internal/telemetry"
	"github.com/sarafrika/camp-ussd/internal/tracking"
	"github.com/sarafrika/camp-ussd/internal/ussd"
	"github.com/sarafrika/camp-ussd/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Load configuration with precedence: ENV > File > Defaults
	cfg, err := config.Load(*configPath, version.Version)
	if err != nil {
		applog.Configure(applog.Config{Level: "info", Service: "camp-ussd", Version: version.Version})
		bootLogger := applog.WithComponent("daemon")
		bootLogger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	applog.Configure(applog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger := applog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    config.ParseString("USSD_ENVIRONMENT", "production"),
		ExporterType:   cfg.TracingExporter,
		Endpoint:       cfg.TracingEndpoint,
		SamplingRate:   cfg.TracingSampling,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("event", "telemetry.init_failed").Msg("failed to initialize tracing")
	}

	gateway, err := store.NewSQLiteGateway(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "store.open_failed").Str("db_path", cfg.DBPath).Msg("failed to open data store")
	}
	if cfg.SeedPath != "" {
		if err := gateway.Seed(ctx, cfg.SeedPath); err != nil {
			logger.Fatal().Err(err).Str("event", "store.seed_failed").Str("seed_file", cfg.SeedPath).Msg("failed to seed data store")
		}
	}

	sessions, err := session.NewStore(session.StoreConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.SessionTTL,
	}, applog.WithComponent("session"))
	if err != nil {
		logger.Fatal().Err(err).Str("event", "session.connect_failed").Msg("failed to connect to session store")
	}

	tracker := tracking.NewTracker(applog.WithComponent("tracking"))
	if !cfg.TrackingEnabled {
		tracker.Disable()
	}
	trackingStore, err := tracking.NewSQLiteStore(gateway.DB)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "tracking.init_failed").Msg("failed to initialize tracking store")
	}
	writer := tracking.NewWriter(tracker, trackingStore, tracking.WriterConfig{
		Interval:         cfg.TrackingDrainInterval,
		BatchSize:        cfg.TrackingBatchSize,
		FailureThreshold: cfg.TrackingFailureThreshold,
	}, applog.WithComponent("tracking"))

	var smsClient *sms.Client
	var notifier ussd.Notifier
	if cfg.SMSBaseURL != "" {
		smsClient = sms.NewClient(sms.Config{
			BaseURL:       cfg.SMSBaseURL,
			APIKey:        cfg.SMSAPIKey,
			PartnerID:     cfg.SMSPartnerID,
			Shortcode:     cfg.SMSShortcode,
			RatePerSecond: cfg.SMSRatePerSecond,
		}, applog.WithComponent("sms"))
		notifier = smsClient
	} else {
		logger.Warn().Msg("SMS base URL not configured, notifications disabled")
	}

	var payments ussd.PaymentInitiator
	if cfg.PaymentBaseURL != "" {
		payments = payment.NewClient(payment.Config{
			BaseURL: cfg.PaymentBaseURL,
			Paybill: cfg.PaymentPaybill,
		}, applog.WithComponent("payment"))
	} else {
		logger.Warn().Msg("payment base URL not configured, STK push disabled")
	}

	engine := ussd.NewEngine(gateway, notifier, payments, tracker, ussd.Config{
		PageSize:         cfg.PageSize,
		AgeMin:           cfg.AgeMin,
		AgeMax:           cfg.AgeMax,
		OrganizerContact: cfg.OrganizerContact,
	}, applog.WithComponent("ussd"))

	healthMgr := health.NewManager(cfg.LogService, cfg.Version)
	healthMgr.RegisterChecker(health.CheckerFunc{ComponentName: "redis", Ping: sessions.HealthCheck})
	healthMgr.RegisterChecker(health.CheckerFunc{ComponentName: "sqlite", Ping: gateway.DB.PingContext})

	var paymentNotifier api.PaymentNotifier
	if smsClient != nil {
		paymentNotifier = smsClient
	}
	srv := api.NewServer(engine, sessions, gateway, tracker, paymentNotifier, healthMgr, api.Config{
		ServiceName:      cfg.LogService,
		RateLimitRPM:     cfg.RateLimitRPM,
		OrganizerContact: cfg.OrganizerContact,
	}, applog.WithComponent("api"))

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.ListenAddr).
		Msg("starting camp-ussd")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		writer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		writer.RunRetention(gctx, cfg.RetentionInterval)
		return nil
	})
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	if err := tracerProvider.Shutdown(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("tracer shutdown failed")
	}
	if err := sessions.Close(); err != nil {
		logger.Warn().Err(err).Msg("session store close failed")
	}
	if err := gateway.Close(); err != nil {
		logger.Warn().Err(err).Msg("data store close failed")
	}

	if runErr != nil {
		logger.Error().Err(runErr).Str("event", "shutdown.error").Msg("daemon exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("server exiting")
}
