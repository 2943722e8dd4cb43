package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/condosec/condowatch/internal/alerting"
	"github.com/condosec/condowatch/internal/api"
	"github.com/condosec/condowatch/internal/capture"
	"github.com/condosec/condowatch/internal/conf"
	"github.com/condosec/condowatch/internal/datastore"
	"github.com/condosec/condowatch/internal/datastore/repository"
	"github.com/condosec/condowatch/internal/fusion"
	"github.com/condosec/condowatch/internal/ingest"
	"github.com/condosec/condowatch/internal/logger"
	"github.com/condosec/condowatch/internal/mqtt"
	"github.com/condosec/condowatch/internal/notification"
	"github.com/condosec/condowatch/internal/observability"
	"github.com/condosec/condowatch/internal/vision"
)

const shutdownTimeout = 15 * time.Second

func runRealtime(ctx context.Context, configPath string) error {
	settings, err := conf.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.NewSlogLogger(os.Stdout, logger.ParseLevel(settings.Main.LogLevel), nil)
	metrics := observability.NewMetrics()

	db, err := datastore.Open(&settings.Database)
	if err != nil {
		return err
	}

	repos := api.Repositories{
		Events:        repository.NewEventRepository(db),
		Alerts:        repository.NewAlertRepository(db),
		Snapshots:     repository.NewSnapshotRepository(db),
		Nodes:         repository.NewNodeRepository(db),
		Notifications: repository.NewNotificationRepository(db),
		Settings:      repository.NewSettingsRepository(db),
		Summary:       repository.NewSummaryRepository(db),
	}

	engine := fusion.NewEngine(settings.Fusion, repos.Events, repos.Alerts,
		repos.Snapshots, repos.Settings, log, metrics)
	manager := alerting.NewManager(repos.Alerts, log, metrics)
	ingestSvc := ingest.NewService(repos.Events, repos.Nodes, engine, log, metrics)

	pool := capture.NewPool(nil, settings.Capture, log, metrics)
	defer pool.StopAll()
	if settings.Capture.OutdoorSource != "" {
		if _, err := pool.Acquire(vision.RoleOutdoor, settings.Capture.OutdoorSource); err != nil {
			return fmt.Errorf("failed to bind outdoor camera: %w", err)
		}
	}
	if settings.Capture.IndoorSource != "" {
		if _, err := pool.Acquire(vision.RoleIndoor, settings.Capture.IndoorSource); err != nil {
			return fmt.Errorf("failed to bind indoor camera: %w", err)
		}
	}

	store := &vision.SnapshotStore{Dir: settings.Vision.SnapshotDir}
	loop := vision.NewLoop(settings.Vision, 0, vision.Deps{
		Frames:  pool,
		Fusion:  engine,
		Store:   store,
		Events:  repos.Events,
		Snaps:   repos.Snapshots,
		Nodes:   repos.Nodes,
		Log:     log,
		Metrics: metrics,
	})
	loop.Start()
	defer loop.Stop()

	channels, err := notification.NewChannels(settings.Notify.Channels, settings.Notify.SendTimeout.Std())
	if err != nil {
		return err
	}
	scheduler := notification.NewScheduler(settings.Notify, settings.HTTP.PublicBaseURL,
		repos.Alerts, repos.Notifications, channels, log, metrics)
	scheduler.Start()
	defer scheduler.Stop()

	if settings.MQTT.Enabled {
		subscriber := mqtt.NewSubscriber(settings.MQTT, ingestSvc, log)
		if err := subscriber.Start(); err != nil {
			return err
		}
		defer subscriber.Stop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.New(e, settings, repos, ingestSvc, manager, engine, pool, store, scheduler, metrics, log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", logger.String("addr", settings.HTTP.Addr))
		if err := e.Start(settings.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
