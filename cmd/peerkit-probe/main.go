// Package main provides a command-line tool that probes the configured ICE
// servers and prints the ones that gather a usable candidate.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerkit"
	"github.com/opd-ai/peerkit/config"
	"github.com/opd-ai/peerkit/metrics"
	"github.com/opd-ai/peerkit/probe"
)

// CLI configuration
type CLIConfig struct {
	configPath string
	servers    string
	policy     string
	candidate  string
	timeout    time.Duration
	logLevel   string
	metrics    string
	help       bool
}

func parseCLIFlags() *CLIConfig {
	c := &CLIConfig{}

	flag.StringVar(&c.configPath, "config", "", "YAML configuration file (default: built-in defaults)")
	flag.StringVar(&c.servers, "servers", "", "Comma-separated ICE server URLs, overriding the configuration")
	flag.StringVar(&c.policy, "policy", "", "Transport policy (all, relay)")
	flag.StringVar(&c.candidate, "candidate", "", "Required candidate type (host, srflx, prflx, relay)")
	flag.DurationVar(&c.timeout, "timeout", 0, "Per-server probe timeout")
	flag.StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&c.metrics, "metrics", "", "Serve Prometheus metrics on this address while probing")
	flag.BoolVar(&c.help, "help", false, "Show help message")

	flag.Parse()
	return c
}

func printUsage() {
	fmt.Println("ICE server connectivity probe")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s -servers stun:stun.l.google.com:19302\n", os.Args[0])
	fmt.Printf("  %s -config peerkit.yaml -policy relay -candidate relay\n", os.Args[0])
}

// loadConfig applies the command-line overrides on top of the configuration file.
func loadConfig(c *CLIConfig) (*config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.servers != "" {
		cfg.ICEServers = nil
		for _, u := range strings.Split(c.servers, ",") {
			cfg.ICEServers = append(cfg.ICEServers, probe.IceServerConfig{URLs: []string{strings.TrimSpace(u)}})
		}
	}
	if c.policy != "" {
		cfg.Probe.TransportPolicy = c.policy
	}
	if c.candidate != "" {
		cfg.Probe.RequiredCandidateType = c.candidate
	}
	if c.timeout > 0 {
		cfg.Probe.TimeoutMs = int(c.timeout / time.Millisecond)
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.metrics != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = c.metrics
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "serveMetrics",
				"address":  addr,
				"error":    err.Error(),
			}).Error("Metrics listener failed")
		}
	}()
	return srv
}

func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	go func() {
		<-sigChan
		cancel()
	}()
}

func main() {
	cliConfig := parseCLIFlags()
	if cliConfig.help {
		printUsage()
		os.Exit(0)
	}

	cfg, err := loadConfig(cliConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Logging.Apply(logrus.StandardLogger()); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	opts := peerkit.OptionsFromConfig(cfg)
	opts.Metrics = metrics.New()
	rt, err := peerkit.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer rt.Kill()

	if cfg.Metrics.Enabled {
		srv := serveMetrics(cfg.Metrics.Address, rt.Metrics())
		defer srv.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	reachable := rt.ReachableServers(ctx)
	for _, s := range reachable {
		fmt.Println(s.String())
	}

	logrus.WithFields(logrus.Fields{
		"function":  "main",
		"probed":    len(cfg.ICEServers),
		"reachable": len(reachable),
	}).Info("Probe finished")

	if len(reachable) == 0 {
		rt.Kill()
		os.Exit(2)
	}
}
