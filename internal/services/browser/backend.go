package browser

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/services/loader"
)

// BackendName is the registry name of the headless Chrome backend
const BackendName = "browser"

// readyExpression is truthy once the library is usable or has definitively failed to load
const readyExpression = `(typeof google !== 'undefined' && !!google.maps && typeof google.maps.Map === 'function') || !!window.__mapcheckLoadError`

// Backend loads the Maps JavaScript API into a fresh headless Chrome per Open
type Backend struct {
	config  common.BrowserConfig
	loader  *loader.Loader
	logger  arbor.ILogger
	session *Session
}

// NewBackend creates a browser backend
func NewBackend(config common.BrowserConfig, l *loader.Loader, logger arbor.ILogger) *Backend {
	return &Backend{
		config: config,
		loader: l,
		logger: logger,
	}
}

// Name returns the backend name
func (b *Backend) Name() string {
	return BackendName
}

// Open launches Chrome, loads the host page and waits for google.maps.
// A library that never appears is not an error: the checks report it.
func (b *Backend) Open(ctx context.Context) (interfaces.MapsClient, interfaces.Surface, error) {
	if b.session != nil {
		return nil, nil, fmt.Errorf("browser backend already open")
	}

	session := NewSession(b.config, b.logger)
	if err := session.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}
	b.session = session

	html := loader.BlankPage()
	if b.loader.APIKey == "" {
		b.logger.Warn().Msg("No Maps API key configured - loading page without the Maps script")
	} else {
		var err error
		if html, err = b.loader.HostPage(); err != nil {
			b.Close()
			return nil, nil, err
		}
		b.logger.Debug().Str("url", b.loader.RedactedURL()).Msg("Loading Maps JavaScript API")
		if !b.loader.Requests(models.PlacesLibrary) {
			b.logger.Warn().Msg("Places library not requested in maps.libraries - the places check will warn")
		}
	}

	if err := session.LoadPage(ctx, html); err != nil {
		b.Close()
		return nil, nil, fmt.Errorf("failed to load host page: %w", err)
	}

	ready, err := session.WaitFor(ctx, readyExpression, b.config.LoadTimeoutDuration())
	if err != nil {
		b.Close()
		return nil, nil, fmt.Errorf("failed waiting for maps library: %w", err)
	}

	var loadError string
	if err := session.Evaluate(ctx, `String(window.__mapcheckLoadError || "")`, &loadError); err == nil && loadError != "" {
		b.logger.Warn().Str("reason", loadError).Msg("Maps JavaScript API failed to load")
	} else if !ready {
		b.logger.Warn().Dur("timeout", b.config.LoadTimeoutDuration()).Msg("Timed out waiting for Maps JavaScript API")
	}

	return NewClient(session), NewSurface(session), nil
}

// Close shuts down the browser opened by Open
func (b *Backend) Close() error {
	if b.session == nil {
		return nil
	}
	err := b.session.Close()
	b.session = nil
	return err
}
