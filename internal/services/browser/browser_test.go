package browser

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/models"
	"github.com/ternarybob/mapcheck/internal/services/diagnostics"
	"github.com/ternarybob/mapcheck/internal/services/loader"
)

// stubPage defines a minimal google.maps in place of the real loader
const stubPage = `<!DOCTYPE html>
<html><head><script>
window.__mapcheckProbes = {};
window.__constructed = [];
var google = { maps: {
  version: "3.55",
  places: {},
  Map: function (el, opts) {
    if (!el || !document.body.contains(el)) { throw new Error("element not attached"); }
    if (opts.zoom === 99) { throw new Error("quota exceeded"); }
    window.__constructed.push({ lat: opts.center.lat, lng: opts.center.lng, zoom: opts.zoom });
  }
}};
</script></head><body></body></html>`

func requireChrome(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no Chrome binary found")
}

func testConfig() common.BrowserConfig {
	config := common.NewDefaultConfig().Browser
	config.NoSandbox = true
	config.LoadTimeout = "2s"
	return config
}

func startStubSession(t *testing.T) *Session {
	t.Helper()
	requireChrome(t)

	session := NewSession(testConfig(), arbor.NewLogger())
	require.NoError(t, session.Start(context.Background()))
	t.Cleanup(func() { session.Close() })

	require.NoError(t, session.LoadPage(context.Background(), stubPage))
	return session
}

func TestSession_StartAndClose(t *testing.T) {
	requireChrome(t)

	session := NewSession(testConfig(), arbor.NewLogger())
	assert.False(t, session.IsStarted())

	require.NoError(t, session.Start(context.Background()))
	assert.True(t, session.IsStarted())
	assert.Error(t, session.Start(context.Background()), "second start should fail")

	require.NoError(t, session.Close())
	assert.False(t, session.IsStarted())
	require.NoError(t, session.Close())

	var out bool
	assert.Error(t, session.Evaluate(context.Background(), "true", &out))
}

func TestClient_AgainstStubLibrary(t *testing.T) {
	session := startStubSession(t)
	ctx := context.Background()
	client := NewClient(session)
	surface := NewSurface(session)

	loaded, err := client.Loaded(ctx)
	require.NoError(t, err)
	assert.True(t, loaded)

	version, err := client.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3.55", version)

	places, err := client.HasLibrary(ctx, "places")
	require.NoError(t, err)
	assert.True(t, places)

	drawing, err := client.HasLibrary(ctx, "drawing")
	require.NoError(t, err)
	assert.False(t, drawing)

	el, err := surface.CreateElement(ctx, models.ProbeElement)
	require.NoError(t, err)
	require.NoError(t, surface.Attach(ctx, el))

	attached, err := surface.Attached(ctx, el.ID())
	require.NoError(t, err)
	assert.True(t, attached)

	require.NoError(t, client.NewMap(ctx, el, models.ProbeMapOptions()))

	err = client.NewMap(ctx, el, models.MapOptions{Center: models.ProbeCenter, Zoom: 99})
	require.Error(t, err)
	assert.Equal(t, "quota exceeded", err.Error())

	require.NoError(t, surface.Detach(ctx, el))
	attached, err = surface.Attached(ctx, el.ID())
	require.NoError(t, err)
	assert.False(t, attached)

	var constructed []models.LatLng
	require.NoError(t, session.Evaluate(ctx, `window.__constructed`, &constructed))
	require.Len(t, constructed, 1)
	assert.Equal(t, models.ProbeCenter, constructed[0])
}

func TestRunner_AgainstStubLibrary(t *testing.T) {
	session := startStubSession(t)

	runner := diagnostics.NewRunner(NewClient(session), NewSurface(session), arbor.NewLogger())
	report := runner.Run(context.Background())

	assert.False(t, report.HasFailures())
	assert.Contains(t, report.Lines, diagnostics.LineMapCreated)
	assert.Contains(t, report.Lines, diagnostics.LinePlacesAvailable)

	var remaining int
	require.NoError(t, session.Evaluate(context.Background(), `document.body.children.length`, &remaining))
	assert.Equal(t, 0, remaining)
}

func TestBackend_NoAPIKeyReportsNotLoaded(t *testing.T) {
	requireChrome(t)

	l := loader.New(common.NewDefaultConfig().Maps, "")
	backend := NewBackend(testConfig(), l, arbor.NewLogger())
	client, surface, err := backend.Open(context.Background())
	require.NoError(t, err)
	defer backend.Close()

	report := diagnostics.NewRunner(client, surface, arbor.NewLogger()).Run(context.Background())

	assert.Contains(t, report.Lines, diagnostics.LineNotLoaded)
	assert.True(t, report.HasFailures())
}
