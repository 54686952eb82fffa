package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second/60, cfg.Tick.Interval())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
tick:
  rate: 30
plugins:
  dirs: [plugins]
  start: [Map, Net]
scene:
  data_paths: [data, /srv/data]
  scene_file: scenes/main.yaml
network:
  transport: quic
  mode: server
  port: 9000
  forward: [SpawnEntityMessage]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Encoding)
	assert.Equal(t, 30, cfg.Tick.Rate)
	assert.Equal(t, []string{"plugins"}, cfg.Plugins.Dirs)
	assert.Equal(t, []string{"Map", "Net"}, cfg.Plugins.Start)
	assert.Equal(t, []string{"data", "/srv/data"}, cfg.Scene.DataPaths)
	assert.Equal(t, "yaml", cfg.Scene.Encoder)
	assert.Equal(t, "scenes/main.yaml", cfg.Scene.SceneFile)
	assert.Equal(t, "quic", cfg.Network.Transport)
	assert.Equal(t, "proto", cfg.Network.Codec)
	assert.Equal(t, 9000, cfg.Network.Port)
	assert.Equal(t, []string{"SpawnEntityMessage"}, cfg.Network.Forward)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tick:\n  rate: 30\n"), 0o644))

	t.Setenv("SIMCORE_TICK_RATE", "20")
	t.Setenv("SIMCORE_NETWORK_MODE", "client")
	t.Setenv("SIMCORE_NETWORK_HOST", "sim.example.org")
	t.Setenv("SIMCORE_SCENE_MAPS", "a.yaml,b.yaml")
	t.Setenv("SIMCORE_NETWORK_WRITE_TIMEOUT", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Tick.Rate)
	assert.Equal(t, "client", cfg.Network.Mode)
	assert.Equal(t, "sim.example.org", cfg.Network.Host)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, cfg.Scene.Maps)
	assert.Equal(t, 2*time.Second, cfg.Network.WriteTimeout)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tick: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)

	t.Setenv("SIMCORE_TICK_RATE", "fast")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log encoding", func(c *Config) { c.Log.Encoding = "xml" }},
		{"zero tick rate", func(c *Config) { c.Tick.Rate = 0 }},
		{"huge tick rate", func(c *Config) { c.Tick.Rate = 5000 }},
		{"scene encoder", func(c *Config) { c.Scene.Encoder = "toml" }},
		{"scene without encoder", func(c *Config) {
			c.Scene.Encoder = "none"
			c.Scene.SceneFile = "main.yaml"
		}},
		{"transport", func(c *Config) { c.Network.Transport = "udp" }},
		{"codec", func(c *Config) { c.Network.Codec = "xml" }},
		{"port", func(c *Config) { c.Network.Port = 70000 }},
		{"mode", func(c *Config) { c.Network.Mode = "peer" }},
		{"server without transport", func(c *Config) {
			c.Network.Mode = "server"
			c.Network.Transport = ""
		}},
		{"client without host", func(c *Config) { c.Network.Mode = "client" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
