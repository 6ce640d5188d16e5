package jsruntime

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/interfaces"
)

// BackendName is the registry name of the embedded JavaScript backend
const BackendName = "script"

// Backend evaluates the configured scripts into a fresh Runtime per Open
type Backend struct {
	config common.ScriptConfig
	logger arbor.ILogger
	rt     *Runtime
}

// NewBackend creates a script backend
func NewBackend(config common.ScriptConfig, logger arbor.ILogger) *Backend {
	return &Backend{
		config: config,
		logger: logger,
	}
}

// Name returns the backend name
func (b *Backend) Name() string {
	return BackendName
}

// Open loads every configured script in order.
// An unreadable file is an error; a script that throws is logged and the
// checks report whatever namespace it left behind.
func (b *Backend) Open(ctx context.Context) (interfaces.MapsClient, interfaces.Surface, error) {
	rt := New(b.logger, b.config.TimeoutDuration())

	for _, path := range b.config.Files {
		if err := rt.LoadFile(ctx, path); err != nil {
			if ctx.Err() != nil {
				return nil, nil, err
			}
			if isReadError(err) {
				return nil, nil, err
			}
			b.logger.Warn().Err(err).Str("script", path).Msg("Script failed to evaluate")
			continue
		}
		b.logger.Debug().Str("script", path).Msg("Script loaded")
	}

	b.rt = rt
	return NewClient(rt), NewSurface(rt), nil
}

// Runtime returns the runtime created by the last Open
func (b *Backend) Runtime() *Runtime {
	return b.rt
}

// Close discards the runtime
func (b *Backend) Close() error {
	b.rt = nil
	return nil
}

func isReadError(err error) bool {
	var readErr *ScriptReadError
	return errors.As(err, &readErr)
}
