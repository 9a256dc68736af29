package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"parkscan/internal/camera"
	"parkscan/internal/camera/opencv"
	"parkscan/internal/config"
	"parkscan/internal/decoder"
	"parkscan/internal/logger"
	"parkscan/internal/loop"
	"parkscan/internal/repository"
	"parkscan/internal/repository/sqlite"
	"parkscan/internal/routes"
	"parkscan/internal/service"
	"parkscan/internal/service/dispatch"
	"parkscan/internal/service/scanner"
	"parkscan/internal/service/websocket"
	"parkscan/internal/ui"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  *logger.Logger
	db      *sqlite.DB
	journal *repository.AsyncSessionRepository
	loop    *loop.EventLoop
	hub     *websocket.Hub
	source  camera.Source
	decoder decoder.Decoder

	ctx     context.Context
	cancel  context.CancelFunc
	manager *service.Manager
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session journal: %w", err)
	}

	source, err := newSource(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	location, err := cfg.LoadLocation()
	if err != nil {
		log.Warning("%v, showing start times in local time", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		config:  cfg,
		logger:  log,
		db:      db,
		journal: repository.NewAsyncSessionRepository(sqlite.NewSessionRepository(db), repository.DefaultQueueSize, log),
		loop:    loop.New(cfg.RefreshInterval()),
		hub:     websocket.NewHub(log),
		source:  source,
		decoder: newDecoder(cfg),
		ctx:     ctx,
		cancel:  cancel,
	}

	panel := ui.NewPanel()
	verifyClient := &http.Client{Timeout: cfg.VerifyTimeout}

	a.manager = service.NewManager(ctx, scanner.Options{
		Scheduler:  a.loop,
		Source:     a.source,
		Decoder:    a.decoder,
		Dispatcher: dispatch.NewDispatcher(cfg.VerifyURL, verifyClient, panel, location, log),
		Panel:      panel,
		Journal:    a.journal,
		Logger:     log,
		Constraints: camera.Constraints{
			Facing: camera.FacingEnvironment,
			Width:  cfg.CameraWidth,
			Height: cfg.CameraHeight,
		},
		ScanInterval: cfg.ScanInterval,
	}, a.hub)

	return a, nil
}

func newSource(cfg *config.Config, log *logger.Logger) (camera.Source, error) {
	if cfg.CameraImage != "" {
		still, err := camera.LoadStillSource(cfg.CameraImage)
		if err != nil {
			return nil, err
		}
		log.Warning("Using still image %s instead of a camera", cfg.CameraImage)
		return still, nil
	}
	return opencv.NewDeviceSource(cfg.CameraDevice, cfg.CameraFallbackDevice, log), nil
}

func newDecoder(cfg *config.Config) decoder.Decoder {
	if cfg.Decoder == "opencv" {
		return opencv.NewQRDetector()
	}
	return decoder.NewZXing(cfg.DecoderTryHarder)
}

// Run serves the console until ctx is done, then shuts the HTTP server
// down and stops the scanner.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	loopErr := make(chan error, 1)
	go func() { loopErr <- a.loop.Run(a.ctx) }()
	go a.hub.Run(a.ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: routes.SetupRoutes(a.manager, a.config, a.logger),
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	a.logger.Info("Parking scanner listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Verification endpoint: %s", a.config.VerifyURL)
	a.logger.Info("Decoder: %s, scan interval %v", a.config.Decoder, a.config.ScanInterval)

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case err := <-loopErr:
		return fmt.Errorf("event loop: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// A live session releases its camera through Cancel before the loop stops.
	if _, err := a.manager.CancelScan(shutdownCtx); err != nil {
		a.logger.Warning("Failed to cancel scan on shutdown: %v", err)
	}
	return server.Shutdown(shutdownCtx)
}

func (a *App) close() {
	a.cancel()
	if closer, ok := a.decoder.(interface{ Close() error }); ok {
		closer.Close()
	}
	a.journal.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close session journal: %v", err)
	}
}
