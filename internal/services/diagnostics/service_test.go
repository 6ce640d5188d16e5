package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/models"
)

type fakeElement struct{ id string }

func (e *fakeElement) ID() string { return e.id }

// fakeSurface tracks which probe elements are currently attached
type fakeSurface struct {
	created   []models.ElementSpec
	attached  map[string]bool
	detached  int
	createErr error
	attachErr error
	detachErr error
	// attachesOnErr attaches the element before returning attachErr
	attachesOnErr bool
	panicOn       string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{attached: map[string]bool{}}
}

func (s *fakeSurface) CreateElement(ctx context.Context, spec models.ElementSpec) (interfaces.Element, error) {
	if s.panicOn == "create" {
		panic("document is not defined")
	}
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, spec)
	return &fakeElement{id: fmt.Sprintf("probe-%d", len(s.created))}, nil
}

func (s *fakeSurface) Attach(ctx context.Context, el interfaces.Element) error {
	if s.panicOn == "attach" {
		panic("document.body is null")
	}
	if s.attachErr != nil {
		if s.attachesOnErr {
			s.attached[el.ID()] = true
		}
		return s.attachErr
	}
	s.attached[el.ID()] = true
	return nil
}

func (s *fakeSurface) Detach(ctx context.Context, el interfaces.Element) error {
	s.detached++
	if s.panicOn == "detach" {
		panic("node was removed")
	}
	if s.detachErr != nil {
		return s.detachErr
	}
	delete(s.attached, el.ID())
	return nil
}

func (s *fakeSurface) attachedCount() int { return len(s.attached) }

// fakeClient records NewMap calls and whether the element was attached at construction time
type fakeClient struct {
	loaded    bool
	loadedErr error
	version   string
	libraries map[string]bool
	newMapErr error
	panicWith interface{}

	surface       *fakeSurface
	calls         []models.MapOptions
	attachedAtNew []bool
}

func (c *fakeClient) Loaded(ctx context.Context) (bool, error) { return c.loaded, c.loadedErr }

func (c *fakeClient) Version(ctx context.Context) (string, error) { return c.version, nil }

func (c *fakeClient) NewMap(ctx context.Context, el interfaces.Element, opts models.MapOptions) error {
	c.calls = append(c.calls, opts)
	if c.surface != nil {
		c.attachedAtNew = append(c.attachedAtNew, c.surface.attached[el.ID()])
	}
	if c.panicWith != nil {
		panic(c.panicWith)
	}
	return c.newMapErr
}

func (c *fakeClient) HasLibrary(ctx context.Context, name string) (bool, error) {
	return c.libraries[name], nil
}

type recordingSink struct{ lines []string }

func (s *recordingSink) Println(line string) { s.lines = append(s.lines, line) }

func (s *recordingSink) contains(substr string) bool {
	for _, l := range s.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func newTestRunner(client *fakeClient, surface *fakeSurface) (*Runner, *recordingSink) {
	client.surface = surface
	sink := &recordingSink{}
	return NewRunner(client, surface, arbor.NewLogger(), sink).WithBackend("fake"), sink
}

func loadedClient() *fakeClient {
	return &fakeClient{
		loaded:    true,
		version:   "3.55",
		libraries: map[string]bool{"places": true},
	}
}

func TestRun_AllChecksPass(t *testing.T) {
	surface := newFakeSurface()
	runner, sink := newTestRunner(loadedClient(), surface)

	report := runner.Run(context.Background())

	assert.Equal(t, []string{
		LineHeader,
		LineLoaded,
		"Maps API Version: 3.55",
		LineMapCreated,
		LinePlacesAvailable,
		LineFooter,
	}, sink.lines)
	assert.Equal(t, sink.lines, report.Lines)
	assert.False(t, report.HasFailures())
	assert.False(t, report.HasWarnings())
	assert.Equal(t, "3.55", report.Version)
	assert.Equal(t, "fake", report.Backend)
	assert.True(t, strings.HasPrefix(report.RunID, "run_"))
	require.Len(t, report.Results, 3)
	assert.Equal(t, models.CheckLibraryLoaded, report.Results[0].Name)
	assert.Equal(t, models.CheckMapConstruction, report.Results[1].Name)
	assert.Equal(t, models.CheckPlacesAvailable, report.Results[2].Name)
}

func TestRun_VersionReported(t *testing.T) {
	runner, sink := newTestRunner(loadedClient(), newFakeSurface())

	runner.Run(context.Background())

	assert.True(t, sink.contains("3.55"))
	assert.True(t, sink.contains(LineLoaded))
}

func TestRun_NamespaceAbsent(t *testing.T) {
	surface := newFakeSurface()
	client := &fakeClient{loaded: false}
	runner, sink := newTestRunner(client, surface)

	report := runner.Run(context.Background())

	assert.True(t, sink.contains(LineNotLoaded))
	assert.True(t, sink.contains(LinePlacesFailPrefix))
	assert.False(t, sink.contains(LinePlacesNotLoaded))
	assert.True(t, sink.contains(LineMapFailedPrefix+ErrNotLoaded.Error()))

	// Gated checks never touch the surface or the constructor
	assert.Empty(t, surface.created)
	assert.Empty(t, client.calls)

	assert.Equal(t, models.CheckFailed, report.Result(models.CheckLibraryLoaded).Status)
	assert.Equal(t, models.CheckFailed, report.Result(models.CheckMapConstruction).Status)
	assert.Equal(t, models.CheckFailed, report.Result(models.CheckPlacesAvailable).Status)
	assert.Equal(t, LineFooter, sink.lines[len(sink.lines)-1])
}

func TestRun_LoadedLookupErrorIsNotFatal(t *testing.T) {
	client := &fakeClient{loadedErr: errors.New("target closed")}
	runner, sink := newTestRunner(client, newFakeSurface())

	report := runner.Run(context.Background())

	assert.True(t, sink.contains(LineNotLoaded))
	assert.Equal(t, "target closed", report.Result(models.CheckLibraryLoaded).Detail)
}

func TestRun_ConstructorCalledWithProbeParameters(t *testing.T) {
	surface := newFakeSurface()
	client := loadedClient()
	runner, _ := newTestRunner(client, surface)

	runner.Run(context.Background())

	require.Len(t, client.calls, 1)
	assert.Equal(t, 13.7563, client.calls[0].Center.Lat)
	assert.Equal(t, 100.5018, client.calls[0].Center.Lng)
	assert.Equal(t, 10, client.calls[0].Zoom)

	require.Len(t, surface.created, 1)
	assert.Equal(t, models.ElementSpec{Tag: "div", Width: "100px", Height: "100px"}, surface.created[0])
	require.Len(t, client.attachedAtNew, 1)
	assert.True(t, client.attachedAtNew[0], "probe element must be attached when the map is constructed")
}

func TestRun_ProbeElementAlwaysDetached(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
	}{
		{"success", loadedClient()},
		{"constructor error", &fakeClient{loaded: true, version: "3.55", newMapErr: errors.New("boom")}},
		{"constructor panic", &fakeClient{loaded: true, version: "3.55", panicWith: "InvalidValueError"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := newFakeSurface()
			runner, _ := newTestRunner(tt.client, surface)

			runner.Run(context.Background())

			assert.Equal(t, 1, surface.detached)
			assert.Equal(t, 0, surface.attachedCount())
		})
	}
}

func TestRun_ConstructionFailureQuotaExceeded(t *testing.T) {
	client := &fakeClient{
		loaded:    true,
		version:   "3.55",
		newMapErr: errors.New("quota exceeded"),
		libraries: map[string]bool{"places": true},
	}
	runner, sink := newTestRunner(client, newFakeSurface())

	var report *models.Report
	require.NotPanics(t, func() {
		report = runner.Run(context.Background())
	})

	assert.True(t, sink.contains("❌ Map creation failed: quota exceeded"))
	assert.Equal(t, models.CheckFailed, report.Result(models.CheckMapConstruction).Status)

	// Later checks still run
	assert.True(t, sink.contains(LinePlacesAvailable))
	assert.Equal(t, LineFooter, sink.lines[len(sink.lines)-1])
}

func TestRun_ConstructorPanicRecovered(t *testing.T) {
	client := &fakeClient{loaded: true, version: "3.55", panicWith: errors.New("quota exceeded")}
	runner, sink := newTestRunner(client, newFakeSurface())

	require.NotPanics(t, func() {
		runner.Run(context.Background())
	})
	assert.True(t, sink.contains("❌ Map creation failed: quota exceeded"))
}

func TestRun_SurfaceFailures(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		surface := newFakeSurface()
		surface.createErr = errors.New("no document")
		client := loadedClient()
		runner, sink := newTestRunner(client, surface)

		runner.Run(context.Background())

		assert.True(t, sink.contains(LineMapFailedPrefix+"create probe element: no document"))
		assert.Empty(t, client.calls)
		assert.Equal(t, 0, surface.detached)
	})

	t.Run("attach", func(t *testing.T) {
		surface := newFakeSurface()
		surface.attachErr = errors.New("no body")
		client := loadedClient()
		runner, sink := newTestRunner(client, surface)

		runner.Run(context.Background())

		assert.True(t, sink.contains(LineMapFailedPrefix+"attach probe element: no body"))
		assert.Empty(t, client.calls)
		assert.Equal(t, 1, surface.detached)
	})

	t.Run("attach times out after inserting", func(t *testing.T) {
		surface := newFakeSurface()
		surface.attachErr = context.DeadlineExceeded
		surface.attachesOnErr = true
		client := loadedClient()
		runner, sink := newTestRunner(client, surface)

		runner.Run(context.Background())

		assert.True(t, sink.contains(LineMapFailedPrefix+"attach probe element: context deadline exceeded"))
		assert.Empty(t, client.calls)
		assert.Equal(t, 1, surface.detached)
		assert.Equal(t, 0, surface.attachedCount())
	})

	t.Run("detach", func(t *testing.T) {
		surface := newFakeSurface()
		surface.detachErr = errors.New("node not found")
		runner, sink := newTestRunner(loadedClient(), surface)

		report := runner.Run(context.Background())

		assert.True(t, sink.contains(LineMapCreated))
		res := report.Result(models.CheckMapConstruction)
		assert.Equal(t, models.CheckPassed, res.Status)
		assert.Contains(t, res.Detail, "node not found")
	})
}

func TestRun_SurfacePanicsRecovered(t *testing.T) {
	tests := []struct {
		on       string
		wantLine string
		status   models.CheckStatus
	}{
		{"create", LineMapFailedPrefix + "create probe element: document is not defined", models.CheckFailed},
		{"attach", LineMapFailedPrefix + "attach probe element: document.body is null", models.CheckFailed},
		{"detach", LineMapCreated, models.CheckPassed},
	}

	for _, tt := range tests {
		t.Run(tt.on, func(t *testing.T) {
			surface := newFakeSurface()
			surface.panicOn = tt.on
			runner, sink := newTestRunner(loadedClient(), surface)

			var report *models.Report
			require.NotPanics(t, func() {
				report = runner.Run(context.Background())
			})

			assert.True(t, sink.contains(tt.wantLine), "lines: %v", sink.lines)
			assert.Equal(t, tt.status, report.Result(models.CheckMapConstruction).Status)
			assert.Equal(t, LineFooter, sink.lines[len(sink.lines)-1])
		})
	}
}

func TestRun_PlacesAbsentIsWarning(t *testing.T) {
	client := loadedClient()
	client.libraries = map[string]bool{}
	runner, sink := newTestRunner(client, newFakeSurface())

	report := runner.Run(context.Background())

	assert.True(t, sink.contains(LinePlacesNotLoaded))
	assert.False(t, sink.contains(LinePlacesFailPrefix))
	assert.Equal(t, models.CheckWarning, report.Result(models.CheckPlacesAvailable).Status)
	assert.False(t, report.HasFailures())
	assert.True(t, report.HasWarnings())
}

func TestRun_IndependentRuns(t *testing.T) {
	runner, _ := newTestRunner(loadedClient(), newFakeSurface())

	first := runner.Run(context.Background())
	second := runner.Run(context.Background())

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Len(t, first.Results, 3)
	assert.Len(t, second.Results, 3)
}
