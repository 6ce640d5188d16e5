package app

import (
	"context"
	"fmt"
	"io"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapcheck/internal/bootstrap"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/services/diagnostics"
	"github.com/ternarybob/mapcheck/internal/services/report"
)

// App holds the resolved configuration and the registered backends
type App struct {
	Config      *common.Config
	Logger      arbor.ILogger
	Credentials *bootstrap.Credentials
	Registry    *bootstrap.Registry
}

// New creates an application; call Launch before RunOnce
func New(config *common.Config, logger arbor.ILogger) *App {
	return &App{
		Config:      config,
		Logger:      logger,
		Credentials: &bootstrap.Credentials{},
		Registry:    bootstrap.NewRegistry(),
	}
}

// Launch runs the bootstrap sequence and then startup
func (a *App) Launch(ctx context.Context, startup func(ctx context.Context) error) error {
	return bootstrap.Launch(ctx, a.Config, a.Credentials, a.Registry, a.Logger, startup)
}

// RunOnce opens the configured backend, runs the diagnostic streaming lines to
// out, and closes the backend. The report is returned even when it has failures;
// an error means the backend itself could not be opened.
func (a *App) RunOnce(ctx context.Context, out io.Writer) (*models.Report, error) {
	backend, err := a.Registry.New(a.Config.Backend.Name, a.Config, a.Credentials, a.Logger)
	if err != nil {
		return nil, err
	}
	return a.runWith(ctx, backend, out)
}

func (a *App) runWith(ctx context.Context, backend interfaces.Backend, out io.Writer) (*models.Report, error) {
	client, surface, err := backend.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", backend.Name(), err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			a.Logger.Warn().Err(err).Str("backend", backend.Name()).Msg("Failed to close backend")
		}
	}()

	sinks := []interfaces.Sink{}
	if out != nil {
		sinks = append(sinks, report.NewConsoleSink(out))
	} else {
		sinks = append(sinks, report.NewLogSink(a.Logger, "diagnostic"))
	}

	runner := diagnostics.NewRunner(client, surface, a.Logger, sinks...).WithBackend(backend.Name())
	return runner.Run(ctx), nil
}
