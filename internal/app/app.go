package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"drivermonitor/internal/config"
	"drivermonitor/internal/logger"
	"drivermonitor/internal/repository/sqlite"
	"drivermonitor/internal/route"
	"drivermonitor/internal/service"
	"drivermonitor/internal/service/ai"
	"drivermonitor/internal/service/inference"
	"drivermonitor/internal/service/storage"
	"drivermonitor/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

// App is the model server: inference API, dashboard endpoints and the
// background services behind them.
type App struct {
	config    *config.Config
	logger    *logger.Logger
	db        *sqlite.DB
	inference *inference.Service
	snapshots *storage.SnapshotService
	hub       *websocket.HubService
	manager   *service.Manager
	server    *http.Server
}

// NewApp loads the configuration and the models. A missing distraction model
// is an error; a missing drowsiness model only disables drowsiness.
func NewApp() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewLogger(cfg)

	detector, err := ai.NewYOLODetector(ai.DetectorOptions{
		ModelPath:    cfg.DistractionModelPath,
		LabelsPath:   cfg.DistractionLabelsPath,
		InputSize:    cfg.InputSize,
		Confidence:   cfg.DistractionConfidence,
		NMSThreshold: cfg.NMSThreshold,
	})
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to load distraction model: %w", err)
	}

	drowsiness, err := inference.NewDrowsinessStrategy(cfg, log)
	if err != nil {
		detector.Close()
		log.Close()
		return nil, fmt.Errorf("failed to load drowsiness model: %w", err)
	}

	svc := inference.NewService(detector, drowsiness, log)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		svc.Close()
		log.Close()
		return nil, err
	}

	snapshotRepo := sqlite.NewSnapshotRepository(db)
	alertRepo := sqlite.NewAlertRepository(db)

	snapshots := storage.NewSnapshotService(cfg, log, snapshotRepo, alertRepo)
	hub := websocket.NewHubService(log)

	var sink service.SnapshotSink
	if cfg.SnapshotsEnabled {
		sink = snapshots
	}
	manager := service.NewManager(hub, sink, cfg, log)

	svc.SetObserver(manager)

	router := route.SetupRoutes(svc, hub, snapshots, snapshotRepo, alertRepo, cfg, log)

	return &App{
		config:    cfg,
		logger:    log,
		db:        db,
		inference: svc,
		snapshots: snapshots,
		hub:       hub,
		manager:   manager,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is cancelled, then shuts down the server and the
// background services in order.
func (a *App) Run(ctx context.Context) error {
	bgCtx, stopBackground := context.WithCancel(context.Background())
	snapshotsDone := make(chan struct{})

	go func() {
		a.snapshots.Run(bgCtx)
		close(snapshotsDone)
	}()
	go a.hub.Run(bgCtx)

	a.logger.Info("Driver monitor listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Distraction model: %s", a.config.DistractionModelPath)
	a.logger.Info("Drowsiness strategy: %s", a.inference.DrowsinessStrategy())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.ListenAndServe()
	}()

	var err error
	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = a.server.Shutdown(shutdownCtx)
		cancel()
	}

	// workers may still hand frames to the snapshot buffer
	a.manager.Stop()
	stopBackground()
	<-snapshotsDone

	return errors.Join(err, a.close())
}

func (a *App) close() error {
	err := errors.Join(a.inference.Close(), a.db.Close())
	a.logger.Close()
	return err
}
