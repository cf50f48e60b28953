package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/airtouch/internal/session"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "airtouch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "plus", s.Gateway.Generation)
	assert.Equal(t, 5*time.Second, s.Session.DialTimeout)
	assert.Equal(t, time.Millisecond, s.Session.Backoff.Initial)
	assert.Equal(t, 10.0, s.Session.Backoff.Multiplier)
	assert.Equal(t, 10*time.Second, s.Session.Backoff.Max)
	assert.True(t, s.Session.VerifyLegacyChecksum)
	assert.Equal(t, "console", s.Logging.Format)
	assert.Equal(t, "/metrics", s.Metrics.Path)
	assert.Empty(t, s.Feed.Addr)
}

func TestLoadFile(t *testing.T) {
	path := writeSettings(t, `
gateway:
  host: 192.168.1.20
  generation: legacy
session:
  abilityRetry: 500ms
  backoff:
    initial: 10ms
    max: 2s
  dumpDir: /tmp/frames
logging:
  level: debug
  format: json
  file:
    filename: /var/log/airtouch.log
metrics:
  addr: ":9310"
`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", s.Gateway.Host)
	assert.Equal(t, 500*time.Millisecond, s.Session.AbilityRetry)
	assert.Equal(t, 2*time.Second, s.Session.Backoff.Max)
	assert.Equal(t, ":9310", s.Metrics.Addr)

	cfg := s.SessionConfig()
	assert.Equal(t, session.GenerationLegacy, cfg.Generation)
	assert.Equal(t, 8899, cfg.Port)
	assert.Equal(t, "192.168.1.20:8899", cfg.Addr())
	assert.Equal(t, 10*time.Millisecond, cfg.Backoff.Initial)
	assert.Equal(t, 10.0, cfg.Backoff.Multiplier)
	assert.Equal(t, "/tmp/frames", cfg.DumpDir)

	opts := s.LoggingOptions()
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "json", opts.Format)
	assert.Equal(t, "/var/log/airtouch.log", opts.File.Filename)
	assert.Equal(t, 50, opts.File.MaxSizeMB)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeSettings(t, "gateway:\n  host: 192.168.1.20\n")
	t.Setenv("AIRTOUCH_GATEWAY_HOST", "10.1.1.1")
	t.Setenv("AIRTOUCH_GATEWAY_PORT", "9300")
	t.Setenv("AIRTOUCH_SESSION_COMMANDTIMEOUT", "3s")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", s.Gateway.Host)
	assert.Equal(t, 3*time.Second, s.Session.CommandTimeout)
	assert.Equal(t, "10.1.1.1:9300", s.SessionConfig().Addr())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown generation", "gateway:\n  generation: v3\n"},
		{"port out of range", "gateway:\n  port: 70000\n"},
		{"backoff inverted", "session:\n  backoff:\n    initial: 20s\n    max: 1s\n"},
		{"bad duration", "session:\n  dialTimeout: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeSettings(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestUseGateway(t *testing.T) {
	s := &Settings{Gateway: GatewaySettings{Generation: "plus"}}
	s.UseGateway(&Gateway{Host: "10.0.0.5", Generation: "legacy"})

	cfg := s.SessionConfig()
	assert.Equal(t, "10.0.0.5:8899", cfg.Addr())
	assert.Equal(t, session.GenerationLegacy, cfg.Generation)
}
