package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ternarybob/arbor"
)

// FileTrigger calls a function when any of a set of files is written.
// Directories are watched rather than files so editors that replace the
// file on save still produce events.
type FileTrigger struct {
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	fire     func(ctx context.Context)
	logger   arbor.ILogger
	debounce time.Duration

	mu      sync.Mutex
	pending bool
	lastAt  time.Time
	fired   int
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewFileTrigger watches the given files; fire runs at most once per debounce window
func NewFileTrigger(files []string, fire func(ctx context.Context), logger arbor.ILogger) (*FileTrigger, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	t := &FileTrigger{
		watcher:  w,
		files:    make(map[string]struct{}, len(files)),
		fire:     fire,
		logger:   logger,
		debounce: 300 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		t.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	return t, nil
}

// Start runs the event loop in a goroutine
func (t *FileTrigger) Start(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()

	go t.loop(ctx)
	t.logger.Info().Int("files", len(t.files)).Msg("Watching script files for changes")
}

// Stop ends the event loop and releases the watcher
func (t *FileTrigger) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		t.watcher.Close()
		return
	}
	t.running = false
	t.mu.Unlock()

	close(t.stopCh)
	<-t.doneCh
	if err := t.watcher.Close(); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to close file watcher")
	}
}

// Fired returns how many times the trigger has fired
func (t *FileTrigger) Fired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

func (t *FileTrigger) loop(ctx context.Context) {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.debounce / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handle(event)
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger.Warn().Err(err).Msg("File watcher error")
		case <-ticker.C:
			if t.due() {
				t.fire(ctx)
			}
		}
	}
}

func (t *FileTrigger) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	if _, ok := t.files[abs]; !ok {
		return
	}

	t.logger.Debug().Str("file", abs).Str("op", event.Op.String()).Msg("Script file changed")

	t.mu.Lock()
	t.pending = true
	t.lastAt = time.Now()
	t.mu.Unlock()
}

// due reports whether a pending change has settled
func (t *FileTrigger) due() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.pending || time.Since(t.lastAt) < t.debounce {
		return false
	}
	t.pending = false
	t.fired++
	return true
}
