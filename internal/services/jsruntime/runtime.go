// Package jsruntime runs the Google Maps diagnostic inside an embedded goja
// JavaScript VM, against a mapping library loaded from script files.
package jsruntime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/ternarybob/arbor"
)

// Runtime wraps a goja VM with browser-like globals: window, document and console.
// goja is not goroutine safe; all VM access goes through mu.
type Runtime struct {
	vm       *goja.Runtime
	document *Document
	logger   arbor.ILogger
	timeout  time.Duration
	mu       sync.Mutex
}

// New creates a runtime. timeout bounds each script evaluation and constructor call.
func New(logger arbor.ILogger, timeout time.Duration) *Runtime {
	vm := goja.New()
	r := &Runtime{
		vm:      vm,
		logger:  logger,
		timeout: timeout,
	}
	r.document = newDocument(vm)

	vm.Set("window", vm.GlobalObject())
	vm.Set("document", r.document.object)
	vm.Set("console", r.console())

	return r
}

// Document returns the document shim
func (r *Runtime) Document() *Document {
	return r.document
}

// LoadFile evaluates a script file in the global scope
func (r *Runtime) LoadFile(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return &ScriptReadError{Path: path, Err: err}
	}
	_, err = r.RunScript(ctx, filepath.Base(path), string(src))
	return err
}

// RunScript evaluates src and returns its completion value
func (r *Runtime) RunScript(ctx context.Context, name, src string) (goja.Value, error) {
	var val goja.Value
	err := r.guarded(ctx, func(vm *goja.Runtime) error {
		var err error
		val, err = vm.RunScript(name, src)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run script %s: %w", name, err)
	}
	return val, nil
}

// guarded runs fn holding the VM lock, interrupting it on timeout or ctx cancellation
func (r *Runtime) guarded(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := r.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// Errors raised through vm.New lose the InterruptedError type, so the
	// reason is tracked here rather than read back from the error.
	var reason atomic.Value
	interrupt := func(v string) {
		reason.Store(v)
		r.vm.Interrupt(v)
	}
	timer := time.AfterFunc(timeout, func() { interrupt("timeout") })
	stop := context.AfterFunc(ctx, func() { interrupt("cancelled") })
	defer func() {
		timer.Stop()
		stop()
		r.vm.ClearInterrupt()
	}()

	err := fn(r.vm)
	if err == nil {
		return nil
	}
	if v, ok := reason.Load().(string); ok {
		return fmt.Errorf("script interrupted: %s", v)
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("script interrupted: %v", interrupted.Value())
	}
	return err
}

// console routes console.* calls to the logger
func (r *Runtime) console() *goja.Object {
	console := r.vm.NewObject()
	logAt := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			msg := strings.Join(parts, " ")
			switch level {
			case "error":
				r.logger.Error().Str("source", "script").Msg(msg)
			case "warn":
				r.logger.Warn().Str("source", "script").Msg(msg)
			default:
				r.logger.Debug().Str("source", "script").Msg(msg)
			}
			return goja.Undefined()
		}
	}
	console.Set("log", logAt("log"))
	console.Set("info", logAt("info"))
	console.Set("warn", logAt("warn"))
	console.Set("error", logAt("error"))
	return console
}

// exceptionMessage extracts error.message from a thrown JS value
func exceptionMessage(err error) string {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		if obj, ok := exc.Value().(*goja.Object); ok {
			if msg := obj.Get("message"); present(msg) {
				return msg.String()
			}
		}
		if v := exc.Value(); v != nil {
			return v.String()
		}
	}
	return err.Error()
}

// present reports whether v is neither missing, undefined nor null
func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

// ScriptReadError reports a script file that could not be read, as opposed to one that threw
type ScriptReadError struct {
	Path string
	Err  error
}

func (e *ScriptReadError) Error() string {
	return fmt.Sprintf("failed to read script %s: %v", e.Path, e.Err)
}

func (e *ScriptReadError) Unwrap() error { return e.Err }
