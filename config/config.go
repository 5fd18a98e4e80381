package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/peerkit/probe"
)

// Config represents the complete client configuration
type Config struct {
	ICEServers []probe.IceServerConfig `yaml:"ice_servers"`
	Probe      ProbeConfig             `yaml:"probe"`
	Voice      VoiceConfig             `yaml:"voice"`
	Transfer   TransferConfig          `yaml:"transfer"`
	Codec      CodecConfig             `yaml:"codec"`
	Logging    LoggingConfig           `yaml:"logging"`
	Metrics    MetricsConfig           `yaml:"metrics"`
}

// ProbeConfig controls ICE server probing
type ProbeConfig struct {
	TransportPolicy       string `yaml:"transport_policy"`        // all | relay
	RequiredCandidateType string `yaml:"required_candidate_type"` // empty | host | srflx | prflx | relay
	TimeoutMs             int    `yaml:"timeout_ms"`
}

// VoiceConfig controls the voice activity meter
type VoiceConfig struct {
	SpeakingThreshold float64 `yaml:"speaking_threshold"`
	IntervalMs        int     `yaml:"interval_ms"`
	FFTSize           int     `yaml:"fft_size"`
}

// TransferConfig controls transfer speed estimation and stall detection
type TransferConfig struct {
	SampleIntervalMs    int `yaml:"sample_interval_ms"`
	WindowSize          int `yaml:"window_size"`
	StallTimeoutSeconds int `yaml:"stall_timeout_seconds"` // 0 disables stall detection
}

// CodecConfig controls the background codec workers
type CodecConfig struct {
	MaxDecompressedBytes int64 `yaml:"max_decompressed_bytes"`
	CompressionLevel     int   `yaml:"compression_level"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		ICEServers: []probe.IceServerConfig{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
		Probe: ProbeConfig{
			TransportPolicy: string(probe.TransportAll),
			TimeoutMs:       5000,
		},
		Voice: VoiceConfig{
			SpeakingThreshold: 10,
			IntervalMs:        100,
			FFTSize:           512,
		},
		Transfer: TransferConfig{
			SampleIntervalMs:    250,
			WindowSize:          10,
			StallTimeoutSeconds: 30,
		},
		Codec: CodecConfig{
			MaxDecompressedBytes: 256 * 1024 * 1024,
			CompressionLevel:     6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
	}
}

// Load reads and parses the configuration file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	for i, server := range c.ICEServers {
		if err := server.Validate(); err != nil {
			return fmt.Errorf("ice_servers[%d]: %w", i, err)
		}
	}

	if err := c.Probe.Validate(); err != nil {
		return fmt.Errorf("probe config: %w", err)
	}

	if err := c.Voice.Validate(); err != nil {
		return fmt.Errorf("voice config: %w", err)
	}

	if err := c.Transfer.Validate(); err != nil {
		return fmt.Errorf("transfer config: %w", err)
	}

	if err := c.Codec.Validate(); err != nil {
		return fmt.Errorf("codec config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

// Validate validates probe configuration
func (p *ProbeConfig) Validate() error {
	switch probe.TransportPolicy(p.TransportPolicy) {
	case probe.TransportAll, probe.TransportRelay:
	default:
		return fmt.Errorf("transport_policy must be 'all' or 'relay', got '%s'", p.TransportPolicy)
	}

	switch probe.CandidateType(p.RequiredCandidateType) {
	case probe.CandidateAny, probe.CandidateHost, probe.CandidateSrflx, probe.CandidatePrflx, probe.CandidateRelay:
	default:
		return fmt.Errorf("required_candidate_type must be empty, host, srflx, prflx or relay, got '%s'", p.RequiredCandidateType)
	}

	if p.TimeoutMs < 1 {
		return fmt.Errorf("timeout_ms must be at least 1, got %d", p.TimeoutMs)
	}

	return nil
}

// Policy returns the probe policy described by p.
func (p *ProbeConfig) Policy() probe.Policy {
	return probe.Policy{
		TransportPolicy:       probe.TransportPolicy(p.TransportPolicy),
		RequiredCandidateType: probe.CandidateType(p.RequiredCandidateType),
		Timeout:               time.Duration(p.TimeoutMs) * time.Millisecond,
	}
}

// Validate validates voice configuration
func (v *VoiceConfig) Validate() error {
	if v.SpeakingThreshold <= 0 || v.SpeakingThreshold > 255 {
		return fmt.Errorf("speaking_threshold must be in (0, 255], got %f", v.SpeakingThreshold)
	}

	if v.IntervalMs < 1 {
		return fmt.Errorf("interval_ms must be at least 1, got %d", v.IntervalMs)
	}

	if v.FFTSize < 32 || v.FFTSize > 32768 || v.FFTSize&(v.FFTSize-1) != 0 {
		return fmt.Errorf("fft_size must be a power of two between 32 and 32768, got %d", v.FFTSize)
	}

	return nil
}

// Interval returns the sampling interval.
func (v *VoiceConfig) Interval() time.Duration {
	return time.Duration(v.IntervalMs) * time.Millisecond
}

// Validate validates transfer configuration
func (t *TransferConfig) Validate() error {
	if t.SampleIntervalMs < 1 {
		return fmt.Errorf("sample_interval_ms must be at least 1, got %d", t.SampleIntervalMs)
	}

	if t.WindowSize < 1 {
		return fmt.Errorf("window_size must be at least 1, got %d", t.WindowSize)
	}

	if t.StallTimeoutSeconds < 0 {
		return fmt.Errorf("stall_timeout_seconds cannot be negative, got %d", t.StallTimeoutSeconds)
	}

	return nil
}

// SampleInterval returns the speed sampling interval.
func (t *TransferConfig) SampleInterval() time.Duration {
	return time.Duration(t.SampleIntervalMs) * time.Millisecond
}

// StallTimeout returns the stall detection window.
func (t *TransferConfig) StallTimeout() time.Duration {
	return time.Duration(t.StallTimeoutSeconds) * time.Second
}

// Validate validates codec configuration
func (c *CodecConfig) Validate() error {
	if c.MaxDecompressedBytes < 1 {
		return fmt.Errorf("max_decompressed_bytes must be positive, got %d", c.MaxDecompressedBytes)
	}

	if c.CompressionLevel < -2 || c.CompressionLevel > 9 {
		return fmt.Errorf("compression_level must be between -2 and 9, got %d", c.CompressionLevel)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("level: %w", err)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// Apply configures logger with the level and format.
func (l *LoggingConfig) Apply(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("level: %w", err)
	}
	logger.SetLevel(level)

	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
	}
	return nil
}
