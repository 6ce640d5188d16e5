package app

import (
	"bytes"
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/services/diagnostics"
)

func stubScript(t *testing.T, name string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "services", "jsruntime", "testdata", name)
}

func scriptApp(t *testing.T, scripts ...string) *App {
	config := common.NewDefaultConfig()
	config.Backend.Name = "script"
	config.Script.Timeout = "1s"
	for _, s := range scripts {
		config.Script.Files = append(config.Script.Files, stubScript(t, s))
	}
	require.NoError(t, config.Validate())

	a := New(config, arbor.NewLogger())
	require.NoError(t, a.Launch(context.Background(), func(ctx context.Context) error { return nil }))
	return a
}

func TestRunOnce_ScriptBackend(t *testing.T) {
	a := scriptApp(t, "maps_stub.js")

	var out bytes.Buffer
	report, err := a.RunOnce(context.Background(), &out)
	require.NoError(t, err)

	assert.False(t, report.HasFailures())
	assert.Equal(t, "script", report.Backend)
	assert.Contains(t, out.String(), diagnostics.LineHeader)
	assert.Contains(t, out.String(), "Maps API Version: 3.55")
	assert.Contains(t, out.String(), diagnostics.LineFooter)
}

func TestRunOnce_LogSinkWhenNoWriter(t *testing.T) {
	a := scriptApp(t, "maps_quota.js")

	report, err := a.RunOnce(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, report.HasFailures())
	assert.Contains(t, report.Lines, "❌ Map creation failed: quota exceeded")
}

func TestRunOnce_UnknownBackend(t *testing.T) {
	a := scriptApp(t, "maps_stub.js")
	a.Config.Backend.Name = "webview"

	_, err := a.RunOnce(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunOnce_OpenFailure(t *testing.T) {
	a := scriptApp(t, "maps_stub.js")
	a.Config.Script.Files = []string{filepath.Join(t.TempDir(), "missing.js")}

	_, err := a.RunOnce(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open script backend")
}
