// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.


package cmd

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/we-are-mono/kernsync/daemon"
	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/history"
	"github.com/we-are-mono/kernsync/metrics"
	"github.com/we-are-mono/kernsync/state"
	"github.com/we-are-mono/kernsync/system"
	"github.com/we-are-mono/kernsync/types"
	"github.com/we-are-mono/kernsync/validation"
)

var daemonConfigPath string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run kernsync as a daemon",
	Long: `Starts the kernsync daemon. It scans the kernel periodically, exports its
routes and listens for commands on a Unix socket.`,
	Run: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().StringVarP(&daemonConfigPath, "config", "c", "", "Path to kernsync.json (default: $KERNSYNC_CONFIG_DIR/kernsync.json)")
}

func runDaemon(cmd *cobra.Command, args []string) {
	// Check for existing daemon via PID file
	pidFile := os.Getenv("KERNSYNC_PID_FILE")
	if pidFile == "" {
		pidFile = "/var/run/kernsync.pid"
	}
	if err := checkExistingDaemon(pidFile); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadDaemonConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	// Write our PID to file
	if err := writePIDFile(pidFile); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] Failed to write PID file: %v\n", err)
		os.Exit(1)
	}
	defer os.Remove(pidFile)

	// Initialize structured logger
	if err := initializeLogger(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		logger.Error("Failed to create metrics collector", logger.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}

	var hist *history.Store
	if cfg.History.Enabled {
		hist, err = history.Open(cfg.History.Path)
		if err != nil {
			// History is informational, the daemon runs without it
			logger.Warn("History disabled",
				logger.Field{Key: "path", Value: cfg.History.Path},
				logger.Field{Key: "error", Value: err.Error()})
			hist = nil
		} else {
			defer hist.Close()
		}
	}

	store := system.NewDefaultNetlinkStore()
	engine := daemon.NewEngine(cfg, daemon.Options{
		Store:   store,
		Names:   store,
		Metrics: collector,
		History: hist,
	})

	server, err := daemon.NewServer(engine, collector)
	if err != nil {
		logger.Error("Failed to create server", logger.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down...")
		if err := server.Stop(); err != nil {
			logger.Error("Failed to stop server", logger.Field{Key: "error", Value: err.Error()})
		}
	}()

	if err := server.Start(); err != nil {
		logger.Error("Server failed", logger.Field{Key: "error", Value: err.Error()})
		server.Stop()
		os.Exit(1)
	}
	logger.Info("kernsync daemon stopped")
}

// loadDaemonConfig loads and validates the configuration the daemon runs with
func loadDaemonConfig() (*types.Config, error) {
	var (
		cfg *types.Config
		err error
	)
	if daemonConfigPath != "" {
		cfg, err = state.LoadConfigFile(daemonConfigPath)
	} else {
		cfg, err = state.LoadConfig()
	}
	if err != nil {
		return nil, err
	}

	if err := validation.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// checkExistingDaemon checks if another daemon is already running
func checkExistingDaemon(pidFile string) error {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			// No PID file exists, we're good to start
			return nil
		}
		return fmt.Errorf("PID file exists but cannot be read: %w (remove %s manually if daemon is not running)", err, pidFile)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return fmt.Errorf("invalid PID in %s: %s (remove file manually if daemon is not running)", pidFile, pidStr)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(pidFile)
		return nil
	}

	// Signal 0 only checks that the process exists
	if err := process.Signal(syscall.Signal(0)); err != nil {
		os.Remove(pidFile)
		return nil
	}

	return fmt.Errorf("daemon already running with PID %d (stop it first or remove %s if it's stale)", pid, pidFile)
}

// writePIDFile writes the current process PID to a file
func writePIDFile(pidFile string) error {
	pid := os.Getpid()
	return os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", pid)), 0600)
}

// logOutputs returns the configured backends, or journald when systemd-cat
// is available and file otherwise
func logOutputs(cfg types.LoggingConfig) []string {
	if len(cfg.Outputs) > 0 {
		return cfg.Outputs
	}
	if _, err := exec.LookPath("systemd-cat"); err == nil {
		return []string{"journald"}
	}
	return []string{"file"}
}

// initializeLogger sets up the structured logger from the logging config
func initializeLogger(cfg types.LoggingConfig) error {
	config := logger.Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		Outputs:   logOutputs(cfg),
		FilePath:  cfg.File,
		Component: "daemon",
	}
	if config.FilePath == "" {
		config.FilePath = types.DefaultLogFile
	}

	var backends []logger.Backend
	emitter := logger.NewEmitter()

	for _, output := range config.Outputs {
		switch output {
		case "journald":
			journaldBackend, err := logger.NewJournaldBackend(config.Format)
			if err != nil {
				log.Printf("[WARN] Could not initialize journald backend: %v, falling back to file", err)
				continue
			}
			backends = append(backends, journaldBackend)
		case "file":
			fileBackend, err := logger.NewFileBackend(config.FilePath, config.Format)
			if err != nil {
				return fmt.Errorf("failed to initialize file backend: %w", err)
			}
			backends = append(backends, fileBackend)
		default:
			return fmt.Errorf("unknown log output %q", output)
		}
	}

	if len(backends) == 0 {
		fileBackend, err := logger.NewFileBackend(config.FilePath, config.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize file backend: %w", err)
		}
		backends = append(backends, fileBackend)
	}

	logger.Init(config, backends, emitter)

	logger.Info("Logging initialized",
		logger.Field{Key: "outputs", Value: strings.Join(config.Outputs, ",")},
		logger.Field{Key: "level", Value: config.Level},
		logger.Field{Key: "format", Value: config.Format})

	return nil
}
