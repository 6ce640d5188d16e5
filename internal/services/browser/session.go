// Package browser runs the Google Maps diagnostic inside headless Chrome
// against the real Maps JavaScript API.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapcheck/internal/common"
)

// Session owns a single headless Chrome instance and its one tab
type Session struct {
	config          common.BrowserConfig
	logger          arbor.ILogger
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	mu              sync.Mutex
	started         bool
}

// NewSession creates a session; Chrome is not launched until Start
func NewSession(config common.BrowserConfig, logger arbor.ILogger) *Session {
	return &Session{
		config: config,
		logger: logger,
	}
}

// Start launches Chrome and verifies it responds
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("browser session already started")
	}

	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.config.Headless),
		chromedp.Flag("disable-gpu", s.config.DisableGPU),
		chromedp.Flag("no-sandbox", s.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(800, 600),
	)
	if s.config.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(s.config.UserAgent))
	}
	if s.config.ExecPath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(s.config.ExecPath))
	}

	// The browser outlives the caller's context; Close tears it down
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Allocate on the top-level context so a later timeout cannot kill the browser
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	testCtx, testCancel := s.withTimeout(ctx, browserCtx, s.config.RequestTimeoutDuration())
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	var title string
	if err := chromedp.Run(testCtx, chromedp.Title(&title)); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser failed responsiveness test: %w", err)
	}

	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.allocatorCancel = allocatorCancel
	s.started = true

	s.logger.Debug().
		Bool("headless", s.config.Headless).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser session started")

	return nil
}

// LoadPage replaces the tab's document with html
func (s *Session) LoadPage(ctx context.Context, html string) error {
	browserCtx, err := s.context()
	if err != nil {
		return err
	}

	runCtx, cancel := s.withTimeout(ctx, browserCtx, s.config.RequestTimeoutDuration())
	defer cancel()

	return chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to get frame tree: %w", err)
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
	)
}

// WaitFor polls expression until it is truthy or timeout elapses.
// It returns false without error on timeout.
func (s *Session) WaitFor(ctx context.Context, expression string, timeout time.Duration) (bool, error) {
	browserCtx, err := s.context()
	if err != nil {
		return false, err
	}

	runCtx, cancel := s.withTimeout(ctx, browserCtx, timeout+time.Second)
	defer cancel()

	var ok bool
	err = chromedp.Run(runCtx, chromedp.Poll(expression, &ok,
		chromedp.WithPollingTimeout(timeout),
		chromedp.WithPollingInterval(100*time.Millisecond),
	))
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Evaluate runs a JavaScript expression in the tab and decodes its result into res
func (s *Session) Evaluate(ctx context.Context, expression string, res interface{}) error {
	browserCtx, err := s.context()
	if err != nil {
		return err
	}

	runCtx, cancel := s.withTimeout(ctx, browserCtx, s.config.RequestTimeoutDuration())
	defer cancel()

	return chromedp.Run(runCtx, chromedp.Evaluate(expression, res))
}

// Close shuts down Chrome. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.browserCancel()
		s.allocatorCancel()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Browser session shutdown timed out")
	}

	s.browserCtx = nil
	s.started = false
	s.logger.Debug().Msg("Browser session closed")
	return nil
}

// IsStarted returns whether Chrome is running
func (s *Session) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Session) context() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, fmt.Errorf("browser session not started")
	}
	return s.browserCtx, nil
}

// withTimeout derives a run context from the browser context that also ends when the caller's ctx does
func (s *Session) withTimeout(caller, browserCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	stop := context.AfterFunc(caller, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
