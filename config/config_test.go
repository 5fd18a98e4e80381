package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/peerkit/probe"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{
			name:     "bad ice url",
			mutate:   func(c *Config) { c.ICEServers = []probe.IceServerConfig{{URLs: []string{"http://x"}}} },
			errorMsg: "ice_servers[0]",
		},
		{
			name:     "bad transport policy",
			mutate:   func(c *Config) { c.Probe.TransportPolicy = "udp" },
			errorMsg: "transport_policy",
		},
		{
			name:     "bad candidate type",
			mutate:   func(c *Config) { c.Probe.RequiredCandidateType = "mdns" },
			errorMsg: "required_candidate_type",
		},
		{
			name:     "zero probe timeout",
			mutate:   func(c *Config) { c.Probe.TimeoutMs = 0 },
			errorMsg: "timeout_ms",
		},
		{
			name:     "fft size not power of two",
			mutate:   func(c *Config) { c.Voice.FFTSize = 500 },
			errorMsg: "fft_size",
		},
		{
			name:     "threshold out of range",
			mutate:   func(c *Config) { c.Voice.SpeakingThreshold = 300 },
			errorMsg: "speaking_threshold",
		},
		{
			name:     "empty window",
			mutate:   func(c *Config) { c.Transfer.WindowSize = 0 },
			errorMsg: "window_size",
		},
		{
			name:     "compression level",
			mutate:   func(c *Config) { c.Codec.CompressionLevel = 12 },
			errorMsg: "compression_level",
		},
		{
			name:     "logging format",
			mutate:   func(c *Config) { c.Logging.Format = "xml" },
			errorMsg: "format",
		},
		{
			name:     "metrics without address",
			mutate:   func(c *Config) { c.Metrics = MetricsConfig{Enabled: true} },
			errorMsg: "address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peerkit.yaml")
	content := `
ice_servers:
  - urls: ["turn:turn.example.org:3478"]
    username: alice
    credential: secret
probe:
  transport_policy: relay
  required_candidate_type: relay
  timeout_ms: 2000
voice:
  interval_ms: 50
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	require.Len(t, c.ICEServers, 1)
	assert.Equal(t, "alice", c.ICEServers[0].Username)
	assert.Equal(t, probe.Policy{
		TransportPolicy:       probe.TransportRelay,
		RequiredCandidateType: probe.CandidateRelay,
		Timeout:               2 * time.Second,
	}, c.Probe.Policy())
	assert.Equal(t, 50*time.Millisecond, c.Voice.Interval())
	assert.Equal(t, 512, c.Voice.FFTSize, "unset fields keep defaults")
	assert.Equal(t, 250*time.Millisecond, c.Transfer.SampleInterval())
	assert.Equal(t, 30*time.Second, c.Transfer.StallTimeout())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("voice: [unclosed"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("voice:\n  fft_size: 100\n"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoggingApply(t *testing.T) {
	logger := logrus.New()
	l := LoggingConfig{Level: "warn", Format: "json"}
	require.NoError(t, l.Apply(logger))
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	assert.Error(t, (&LoggingConfig{Level: "loud"}).Apply(logger))
}
