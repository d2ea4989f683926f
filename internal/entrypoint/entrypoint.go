package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mrlokans/booklog/internal/config"
	"github.com/mrlokans/booklog/internal/covers"
	"github.com/mrlokans/booklog/internal/database"
	http_controllers "github.com/mrlokans/booklog/internal/http"
	"github.com/mrlokans/booklog/internal/scheduler"
	"github.com/mrlokans/booklog/internal/services"
	"github.com/mrlokans/booklog/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts it down
// within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// kill -9 cannot be caught, so only SIGINT and SIGTERM are handled
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	log.Info().Dur("timeout", timeout).Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background workers before the listener so in-flight tasks finish
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info().Msg("server exiting")
	return nil
}

// OpenService opens both stores and returns a ready service. createIfMissing
// allows SQLite to create absent files and the service to create missing tables.
// Store paths are resolved from the environment on every open, so Reconnect
// follows changed CALIBRE_DB_PATH and TALEBOOK_DB_PATH values.
func OpenService(ctx context.Context, cfg *config.Config, createIfMissing bool) (*services.DatabaseService, error) {
	conns := database.NewConnectionManager(database.Options{
		Loader:          func() config.Paths { return config.ResolvePaths(config.Paths{}) },
		CreateIfMissing: createIfMissing,
		Metrics:         database.DefaultMetrics(),
	})

	svc := services.NewDatabaseService(services.Options{
		Connections:     conns,
		DefaultReaderID: cfg.Reading.DefaultReaderID,
		InitSchema:      createIfMissing,
	})
	if err := svc.Init(ctx); err != nil {
		conns.Close()
		return nil, fmt.Errorf("init database service: %w", err)
	}
	return svc, nil
}

// inlineSyncer runs the items sync on the caller's goroutine. It stands in
// for the task queue when the queue is disabled.
type inlineSyncer struct {
	service *services.DatabaseService
}

func (s inlineSyncer) RequestItemsSync(ctx context.Context, bookIDs ...int64) error {
	result, err := s.service.SyncItems(ctx, bookIDs)
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("items sync failed for %d book(s)", len(result.Failed))
	}
	return nil
}

// Run wires the service, the task queue, the integrity scheduler and the
// router, and serves until a shutdown signal arrives.
func Run(cfg *config.Config, version string) error {
	log.Info().Str("version", version).Msg("starting booklog")

	if cfg.Integrity.Enabled {
		if err := scheduler.ValidateCronSchedule(cfg.Integrity.Schedule); err != nil {
			return fmt.Errorf("invalid integrity schedule %q: %w", cfg.Integrity.Schedule, err)
		}
	}

	ctx := context.Background()
	svc, err := OpenService(ctx, cfg, cfg.Database.InitSchema)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error().Err(err).Msg("closing database service")
		}
	}()

	availability := svc.Availability()
	if !availability.Calibre {
		log.Warn().Str("path", cfg.Database.CalibrePath).Msg("bibliographic store unavailable, book endpoints will return empty results")
	}
	if !availability.Talebook {
		log.Warn().Str("path", cfg.Database.TalebookPath).Msg("extension store unavailable, books will carry default extension fields")
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var syncer services.ItemsSyncer = inlineSyncer{service: svc}
	var queued services.ItemsSyncer
	if cfg.Tasks.Enabled {
		taskConfig := tasks.FromConfig(cfg.Tasks)
		taskClient, err = tasks.NewClient(cfg.Database.TalebookPath, taskConfig)
		if err != nil {
			return fmt.Errorf("initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Error().Err(err).Msg("closing task client")
			}
		}()

		taskClient.Register(tasks.NewSyncItemsQueue(svc, taskConfig))

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		defer taskCtxCancel()
		go taskClient.Start(taskCtx)

		queued = tasks.NewItemsSyncRequester(taskClient)
		syncer = queued
		log.Info().Int("workers", cfg.Tasks.Workers).Msg("task queue started")
	}
	svc.SetItemsSyncer(syncer)

	var integrity *scheduler.IntegrityScheduler
	if cfg.Integrity.Enabled {
		integrity = scheduler.NewIntegrityScheduler(svc, syncer, cfg.Integrity.Schedule)
		if err := integrity.Start(ctx); err != nil {
			return fmt.Errorf("start integrity scheduler: %w", err)
		}
	}

	var library *covers.Library
	if cfg.Library.Dir != "" {
		library = covers.NewLibrary(cfg.Library.Dir)
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Store:       svc,
		Library:     library,
		ItemsSyncer: queued,
		Version:     version,
	})

	// SIGHUP reopens both stores, e.g. after the files were replaced
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			if err := svc.Reconnect(context.Background()); err != nil {
				log.Error().Err(err).Msg("reconnect failed")
				continue
			}
			a := svc.Availability()
			log.Info().Bool("calibre", a.Calibre).Bool("talebook", a.Talebook).Msg("stores reconnected")
		}
	}()

	onShutdown := func(ctx context.Context) {
		if integrity != nil {
			integrity.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	return Serve(router, cfg, onShutdown)
}
