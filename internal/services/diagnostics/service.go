// Package diagnostics runs the Google Maps smoke test against an injected
// mapping client and document surface.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

// Output lines
const (
	LineHeader           = "Testing Google Maps API..."
	LineFooter           = "Google Maps API test completed"
	LineLoaded           = "✅ Google Maps API is loaded"
	LineVersionPrefix    = "Maps API Version: "
	LineNotLoaded        = "❌ Google Maps API not loaded"
	LineMapCreated       = "✅ Map creation successful"
	LineMapFailedPrefix  = "❌ Map creation failed: "
	LinePlacesAvailable  = "✅ Places library is available"
	LinePlacesNotLoaded  = "⚠️ Places library not loaded (may need to be explicitly loaded)"
	LinePlacesFailPrefix = "❌ Places library unavailable: "
)

// ErrNotLoaded is the cause reported by checks gated on namespace presence
var ErrNotLoaded = errors.New("Google Maps API not loaded")

// Runner executes the three diagnostic checks in order.
// A Runner holds no state between runs; Run may be called repeatedly.
type Runner struct {
	client  interfaces.MapsClient
	surface interfaces.Surface
	sinks   []interfaces.Sink
	logger  arbor.ILogger
	backend string
}

// NewRunner creates a runner bound to a mapping client and document surface
func NewRunner(client interfaces.MapsClient, surface interfaces.Surface, logger arbor.ILogger, sinks ...interfaces.Sink) *Runner {
	return &Runner{
		client:  client,
		surface: surface,
		sinks:   sinks,
		logger:  logger,
	}
}

// WithBackend records the backend name on produced reports
func (r *Runner) WithBackend(name string) *Runner {
	r.backend = name
	return r
}

// run carries the per-invocation report being built
type run struct {
	*Runner
	report *models.Report
}

// Run executes the diagnostic sequence and returns its report.
// No check failure is returned as an error and no panic escapes.
func (r *Runner) Run(ctx context.Context) *models.Report {
	rn := &run{
		Runner: r,
		report: &models.Report{
			RunID:     common.NewRunID(),
			Backend:   r.backend,
			StartedAt: time.Now(),
		},
	}

	r.logger.Info().
		Str("run_id", rn.report.RunID).
		Str("backend", r.backend).
		Msg("Starting Google Maps diagnostic")

	rn.emit(LineHeader)

	loaded := rn.checkLibraryLoaded(ctx)
	rn.checkMapConstruction(ctx, loaded)
	rn.checkPlaces(ctx, loaded)

	rn.emit(LineFooter)
	rn.report.FinishedAt = time.Now()

	r.logger.Info().
		Str("run_id", rn.report.RunID).
		Bool("has_failures", rn.report.HasFailures()).
		Bool("has_warnings", rn.report.HasWarnings()).
		Dur("duration", rn.report.FinishedAt.Sub(rn.report.StartedAt)).
		Msg("Google Maps diagnostic completed")

	return rn.report
}

func (rn *run) emit(line string) {
	rn.report.Lines = append(rn.report.Lines, line)
	for _, sink := range rn.sinks {
		sink.Println(line)
	}
}

func (rn *run) record(res models.CheckResult, started time.Time) {
	res.Duration = time.Since(started)
	rn.report.Results = append(rn.report.Results, res)

	if res.Status == models.CheckFailed {
		rn.logger.Warn().
			Str("run_id", rn.report.RunID).
			Str("check", res.Name).
			Str("detail", res.Detail).
			Dur("duration", res.Duration).
			Msg("Diagnostic check failed")
		return
	}

	rn.logger.Debug().
		Str("run_id", rn.report.RunID).
		Str("check", res.Name).
		Str("status", string(res.Status)).
		Str("detail", res.Detail).
		Dur("duration", res.Duration).
		Msg("Diagnostic check finished")
}

// checkLibraryLoaded reports whether the namespace is present. Absence is an outcome, not an error.
func (rn *run) checkLibraryLoaded(ctx context.Context) bool {
	started := time.Now()
	res := models.CheckResult{Name: models.CheckLibraryLoaded}

	loaded, err := safeBool(func() (bool, error) { return rn.client.Loaded(ctx) })
	if err != nil {
		res.Detail = err.Error()
		loaded = false
	}

	if !loaded {
		res.Status = models.CheckFailed
		res.Message = LineNotLoaded
		rn.emit(LineNotLoaded)
		rn.record(res, started)
		return false
	}

	version, err := safeString(func() (string, error) { return rn.client.Version(ctx) })
	if err != nil {
		res.Detail = fmt.Sprintf("version lookup failed: %v", err)
	}
	rn.report.Version = version

	res.Status = models.CheckPassed
	res.Message = LineLoaded
	rn.emit(LineLoaded)
	rn.emit(LineVersionPrefix + version)
	rn.record(res, started)
	return true
}

// checkMapConstruction creates, attaches and always detaches the probe element around NewMap
func (rn *run) checkMapConstruction(ctx context.Context, loaded bool) {
	started := time.Now()
	res := models.CheckResult{Name: models.CheckMapConstruction}

	err := ErrNotLoaded
	if loaded {
		err = rn.constructProbeMap(ctx, &res)
	}

	if err != nil {
		res.Status = models.CheckFailed
		res.Message = LineMapFailedPrefix + err.Error()
		if res.Detail == "" {
			res.Detail = err.Error()
		} else {
			res.Detail = err.Error() + "; " + res.Detail
		}
	} else {
		res.Status = models.CheckPassed
		res.Message = LineMapCreated
	}

	rn.emit(res.Message)
	rn.record(res, started)
}

// constructProbeMap guarantees a detach for every created element, even when
// Attach fails part way. Detaching an unattached element is a no-op for surfaces.
func (rn *run) constructProbeMap(ctx context.Context, res *models.CheckResult) error {
	var el interfaces.Element
	err := safeCall(func() error {
		var cerr error
		el, cerr = rn.surface.CreateElement(ctx, models.ProbeElement)
		return cerr
	})
	if err != nil {
		return fmt.Errorf("create probe element: %w", err)
	}
	if el == nil {
		return fmt.Errorf("create probe element: surface returned no element")
	}

	defer func() {
		if derr := safeCall(func() error { return rn.surface.Detach(ctx, el) }); derr != nil {
			rn.logger.Warn().
				Err(derr).
				Str("element", el.ID()).
				Msg("Failed to detach probe element")
			res.Detail = fmt.Sprintf("detach failed: %v", derr)
		}
	}()

	if err := safeCall(func() error { return rn.surface.Attach(ctx, el) }); err != nil {
		return fmt.Errorf("attach probe element: %w", err)
	}

	return safeCall(func() error {
		return rn.client.NewMap(ctx, el, models.ProbeMapOptions())
	})
}

// checkPlaces distinguishes an optionally-unloaded sub-capability (warning) from an absent namespace (failure)
func (rn *run) checkPlaces(ctx context.Context, loaded bool) {
	started := time.Now()
	res := models.CheckResult{Name: models.CheckPlacesAvailable}

	if !loaded {
		res.Status = models.CheckFailed
		res.Message = LinePlacesFailPrefix + ErrNotLoaded.Error()
		res.Detail = ErrNotLoaded.Error()
		rn.emit(res.Message)
		rn.record(res, started)
		return
	}

	present, err := safeBool(func() (bool, error) {
		return rn.client.HasLibrary(ctx, models.PlacesLibrary)
	})
	if err != nil {
		res.Detail = err.Error()
		present = false
	}

	if present {
		res.Status = models.CheckPassed
		res.Message = LinePlacesAvailable
	} else {
		res.Status = models.CheckWarning
		res.Message = LinePlacesNotLoaded
	}

	rn.emit(res.Message)
	rn.record(res, started)
}
