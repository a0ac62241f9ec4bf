package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/lukasbauer/tonebridge/internal/codec"
	"github.com/lukasbauer/tonebridge/internal/config"
	"github.com/lukasbauer/tonebridge/internal/httpapi"
	"github.com/lukasbauer/tonebridge/internal/jobs"
	"github.com/lukasbauer/tonebridge/internal/metrics"
	"github.com/lukasbauer/tonebridge/internal/relay"
	"github.com/samber/do/v2"
)

type App struct {
	cfg      *config.Config
	logger   *log.Logger
	injector do.Injector
	sessions *relay.Registry
	sweeper  *jobs.WorkspaceSweeper
	handler  http.Handler
}

func New(cfg *config.Config, logger *log.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)
	do.ProvideValue(injector, cfg.Gateway())
	metrics.RegisterDI(injector)
	codec.RegisterDI(injector)
	relay.RegisterDI(injector)
	httpapi.RegisterDI(injector)
	jobs.RegisterDI(injector)

	handler, err := do.Invoke[http.Handler](injector)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}
	sessions, err := do.Invoke[*relay.Registry](injector)
	if err != nil {
		return nil, fmt.Errorf("build session registry: %w", err)
	}
	sweeper, err := do.Invoke[*jobs.WorkspaceSweeper](injector)
	if err != nil {
		return nil, fmt.Errorf("build workspace sweeper: %w", err)
	}

	// Tool paths are checked per call, not here; only report what we see.
	avail := cfg.Tools().Available()
	logger.Printf("app: tools toFile=%t fromFile=%t cli=%t ffmpeg=%t", avail.ToFile, avail.FromFile, avail.CLI, avail.FFmpeg)

	return &App{
		cfg:      cfg,
		logger:   logger,
		injector: injector,
		sessions: sessions,
		sweeper:  sweeper,
		handler:  handler,
	}, nil
}

// Start launches background jobs.
func (a *App) Start() {
	a.sweeper.Start()
}

func (a *App) Router() http.Handler {
	return a.handler
}

// Sessions exposes the live session table.
func (a *App) Sessions() *relay.Registry {
	return a.sessions
}

// Close stops accepting duplex sessions, kills the live ones and waits for
// them to be reaped or for ctx to expire.
func (a *App) Close(ctx context.Context) error {
	a.sweeper.Stop()
	a.sessions.StartDraining()
	a.sessions.CloseAll()

	done := make(chan struct{})
	go func() {
		a.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Printf("app: all sessions closed")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d sessions: %w", a.sessions.Len(), ctx.Err())
	}
}

// ShutdownTimeout is the configured grace period for Close.
func (a *App) ShutdownTimeout() time.Duration {
	if a.cfg.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return a.cfg.ShutdownTimeout
}
