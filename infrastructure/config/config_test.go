package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "memory", cfg.Persistence.Driver)
	assert.True(t, cfg.Sweeper.Enabled)
	assert.Equal(t, time.Minute, cfg.SweepInterval())
	assert.Equal(t, time.Hour, cfg.SweepStaleness())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
server:
  address: ":9090"
  environment: staging
persistence:
  driver: dynamodb
  dynamodbTable: analyst-staging
sweeper:
  enabled: false
  intervalSeconds: 30
  stalenessMinutes: 15
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "staging", cfg.Server.Environment)
	assert.Equal(t, "dynamodb", cfg.Persistence.Driver)
	assert.Equal(t, "analyst-staging", cfg.Persistence.DynamoDBTable)
	assert.False(t, cfg.Sweeper.Enabled)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval())
	// Untouched settings keep their defaults.
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
server:
  address: ":9090"
`)
	t.Setenv("SERVER_ADDRESS", ":7070")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "120")
	t.Setenv("ENABLE_TRACING", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, 120, cfg.Sweeper.IntervalSeconds)
	assert.True(t, cfg.Observability.EnableTracing)
}

func TestLoad_Validation(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, t.TempDir(), "config.yaml", `
server:
  environment: sandbox
`)
	_, err = Load(bad)
	assert.Error(t, err)

	negative := writeFile(t, t.TempDir(), "config.yaml", `
sweeper:
  intervalSeconds: -5
`)
	_, err = Load(negative)
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresAPIKey(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	t.Setenv("GEMINI_API_KEY", "key-123")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestWatcher_ReloadsValidOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dynamic.yaml", `
sweeper:
  enabled: true
  intervalSeconds: 60
  stalenessMinutes: 60
`)

	watcher, err := NewWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer watcher.Stop()

	changed := make(chan *DynamicConfig, 1)
	watcher.OnChange(func(overlay *DynamicConfig) { changed <- overlay })
	watcher.Start()

	writeFile(t, dir, "dynamic.yaml", `
sweeper:
  enabled: true
  intervalSeconds: 30
  stalenessMinutes: 45
`)

	select {
	case overlay := <-changed:
		assert.Equal(t, 30, overlay.Sweeper.IntervalSeconds)
		assert.Equal(t, 45, overlay.Sweeper.StalenessMinutes)
	case <-time.After(3 * time.Second):
		t.Fatal("overlay change was not observed")
	}
	assert.Equal(t, 30, watcher.Current().Sweeper.IntervalSeconds)
}

func TestWatcher_KeepsCurrentOnInvalidOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dynamic.yaml", `
sweeper:
  enabled: true
  intervalSeconds: 60
  stalenessMinutes: 60
`)

	watcher, err := NewWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer watcher.Stop()

	changed := make(chan *DynamicConfig, 1)
	watcher.OnChange(func(overlay *DynamicConfig) { changed <- overlay })
	watcher.Start()

	writeFile(t, dir, "dynamic.yaml", `
sweeper:
  intervalSeconds: -1
`)

	select {
	case <-changed:
		t.Fatal("invalid overlay must not be applied")
	case <-time.After(500 * time.Millisecond):
	}
	assert.Equal(t, 60, watcher.Current().Sweeper.IntervalSeconds)
}

func TestNewWatcher_RejectsInvalidInitialOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dynamic.yaml", `
sweeper:
  intervalSeconds: 0
  stalenessMinutes: 60
`)

	_, err := NewWatcher(path, zap.NewNop())
	assert.Error(t, err)
}
