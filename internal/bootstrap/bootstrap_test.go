package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/interfaces"
)

func TestLaunch_ProvidesKeyAndRegistersBackends(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Maps.APIKey = "AIza-launch-key"
	creds := &Credentials{}
	registry := NewRegistry()

	called := false
	err := Launch(context.Background(), config, creds, registry, arbor.NewLogger(), func(ctx context.Context) error {
		called = true
		assert.Equal(t, "AIza-launch-key", creds.APIKey())
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, []string{"browser", "script"}, registry.Names())

	backend, err := registry.New("script", config, creds, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, "script", backend.Name())

	backend, err = registry.New("browser", config, creds, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, "browser", backend.Name())
}

func TestLaunch_ReturnsStartupError(t *testing.T) {
	startupErr := errors.New("startup failed")

	err := Launch(context.Background(), common.NewDefaultConfig(), &Credentials{}, NewRegistry(), arbor.NewLogger(), func(ctx context.Context) error {
		return startupErr
	})

	assert.ErrorIs(t, err, startupErr)
}

func TestLaunch_DuplicateRegistration(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, RegisterBuiltins(registry))

	err := Launch(context.Background(), common.NewDefaultConfig(), &Credentials{}, registry, arbor.NewLogger(), func(ctx context.Context) error {
		t.Fatal("startup must not run when registration fails")
		return nil
	})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	factory := func(config *common.Config, creds *Credentials, logger arbor.ILogger) interfaces.Backend { return nil }

	require.NoError(t, registry.Register("b", factory))
	require.NoError(t, registry.Register("a", factory))
	assert.Error(t, registry.Register("a", factory))
	assert.Error(t, registry.Register("", factory))
	assert.Error(t, registry.Register("c", nil))
	assert.Equal(t, []string{"a", "b"}, registry.Names())

	_, err := registry.New("missing", common.NewDefaultConfig(), &Credentials{}, arbor.NewLogger())
	assert.Error(t, err)
}
