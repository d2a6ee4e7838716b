package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 2*time.Minute, cfg.HeartbeatMaxAge)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 1000, cfg.MaxHistory)
	assert.Equal(t, 4.0, cfg.MemoryPerTaskGB)
	assert.Equal(t, []string{"general"}, cfg.Queues)
	assert.Equal(t, 3, cfg.MaxRestarts)
	assert.Equal(t, time.Minute, cfg.ScaleCooldown)
	assert.Equal(t, 2*time.Minute, cfg.AssignedTimeout)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestLoadFromFile(t *testing.T) {
	path := writeTempFile(t, "taskgrid.yaml", `
broker_url: redis://localhost:6379/1
listen_addr: ":9090"
heartbeat_max_age: 5m
queues:
  - video_processing
  - general
concurrency: 4
capabilities:
  - video_render
handlers:
  video_render: /usr/local/bin/render --preset fast
max_restarts: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379/1", cfg.BrokerURL)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 5*time.Minute, cfg.HeartbeatMaxAge)
	assert.Equal(t, []string{"video_processing", "general"}, cfg.Queues)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, []string{"video_render"}, cfg.Capabilities)
	assert.Equal(t, "/usr/local/bin/render --preset fast", cfg.Handlers["video_render"])
	assert.Equal(t, 5, cfg.MaxRestarts)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/taskgrid.yaml")
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TASKGRID_BROKER_URL", "redis://broker:6379/0")
	t.Setenv("TASKGRID_LISTEN_ADDR", ":7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis://broker:6379/0", cfg.BrokerURL)
	assert.Equal(t, ":7070", cfg.ListenAddr)
}

func TestLoadScaleTargets(t *testing.T) {
	path := writeTempFile(t, "scale.yaml", `
video_processing: 3
audio_processing: 1
general: 0
`)

	targets, err := LoadScaleTargets(path)
	require.NoError(t, err)
	assert.Equal(t, ScaleTargets{
		"video_processing": 3,
		"audio_processing": 1,
		"general":          0,
	}, targets)
}

func TestLoadScaleTargetsRejectsNegative(t *testing.T) {
	path := writeTempFile(t, "scale.yaml", "general: -2\n")
	_, err := LoadScaleTargets(path)
	assert.ErrorContains(t, err, "negative count")
}

func TestLoadScaleTargetsMissingFile(t *testing.T) {
	_, err := LoadScaleTargets("/nonexistent/scale.yaml")
	assert.Error(t, err)
}
