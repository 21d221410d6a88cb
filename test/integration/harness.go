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


//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/we-are-mono/kernsync/client"
	"github.com/we-are-mono/kernsync/daemon"
	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/system"
	"github.com/we-are-mono/kernsync/types"
)

// testTable is the kernel table the tests sync, so the host's main table is
// never touched
const testTable = 100

// TestHarness provides isolated test environment for integration tests
type TestHarness struct {
	t             *testing.T
	configDir     string
	socketPath    string
	createdIfaces []string
	server        *daemon.Server
	result        chan error
}

// NewTestHarness creates a new isolated test environment.
// The daemon runs in the test's network namespace with unique socket and
// config paths.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	// Check for root privileges (needed for network interface manipulation)
	if os.Geteuid() != 0 {
		t.Skip("Integration tests require root privileges")
	}

	configDir := t.TempDir()
	socketPath := filepath.Join(configDir, "kernsync.sock")

	t.Setenv("KERNSYNC_CONFIG_DIR", configDir)
	t.Setenv("KERNSYNC_SOCKET_PATH", socketPath)

	h := &TestHarness{
		t:          t,
		configDir:  configDir,
		socketPath: socketPath,
	}
	t.Cleanup(h.Cleanup)

	t.Logf("Created test harness: socket=%s", socketPath)
	return h
}

// Config returns a configuration syncing only the test table
func (h *TestHarness) Config(routes ...types.Route) *types.Config {
	cfg := types.DefaultConfig()
	cfg.Kernel = []types.KernelConfig{{Name: "test", Table: testTable, ScanIntervalMS: 60000}}
	cfg.StaticRoutes = routes
	cfg.Observer.Enabled = false
	cfg.History.Enabled = false
	return cfg
}

// CreateDummyInterface creates a dummy interface with address cidr.
// The interface name is prefixed with "test-" to avoid conflicts with real interfaces.
func (h *TestHarness) CreateDummyInterface(name, cidr string) string {
	h.t.Helper()

	actualName := "test-" + name
	h.ip("link", "add", actualName, "type", "dummy")
	h.createdIfaces = append(h.createdIfaces, actualName)
	h.ip("link", "set", actualName, "up")
	if cidr != "" {
		h.ip("addr", "add", cidr, "dev", actualName)
	}

	h.t.Logf("Created dummy interface: %s", actualName)
	return actualName
}

// ip runs the ip command and fails the test on error
func (h *TestHarness) ip(args ...string) {
	h.t.Helper()

	cmd := exec.Command("ip", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		h.t.Fatalf("ip %v failed: %v\nOutput: %s", args, err, output)
	}
}

// StartDaemon runs the daemon on the real netlink store and waits until its
// initial scans are done
func (h *TestHarness) StartDaemon(cfg *types.Config) {
	h.t.Helper()

	logger.Init(logger.Config{Level: "debug", Format: "json", Component: "daemon"}, nil, logger.NewEmitter())

	store := system.NewDefaultNetlinkStore()
	engine := daemon.NewEngine(cfg, daemon.Options{Store: store, Names: store})

	srv, err := daemon.NewServer(engine, nil)
	if err != nil {
		h.t.Fatalf("failed to create daemon server: %v", err)
	}
	h.server = srv
	h.result = make(chan error, 1)

	go func() { h.result <- srv.Start() }()

	select {
	case <-srv.Ready():
		h.t.Logf("Daemon started successfully")
	case err := <-h.result:
		h.t.Fatalf("daemon failed to start: %v", err)
	case <-time.After(5 * time.Second):
		h.t.Fatal("Daemon did not become ready within timeout")
	}
}

// StopDaemon stops the daemon and waits for it to exit
func (h *TestHarness) StopDaemon() {
	if h.server == nil {
		return
	}
	h.server.Stop()
	<-h.result
	h.server = nil
}

// SendRequest sends a request to the daemon and decodes its data into out
func (h *TestHarness) SendRequest(req daemon.Request, out interface{}) *daemon.Response {
	h.t.Helper()

	resp, err := client.Send(req)
	if err != nil {
		h.t.Fatalf("request %s failed: %v", req.Command, err)
	}
	if out != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		if err == nil {
			err = json.Unmarshal(raw, out)
		}
		if err != nil {
			h.t.Fatalf("failed to decode %s response: %v", req.Command, err)
		}
	}
	return resp
}

// Cleanup tears down the test environment
func (h *TestHarness) Cleanup() {
	h.StopDaemon()

	// Flush whatever the tests left in the test table
	_ = exec.Command("ip", "route", "flush", "table", fmt.Sprint(testTable)).Run()

	for _, iface := range h.createdIfaces {
		_ = exec.Command("ip", "link", "del", iface).Run()
	}
	h.createdIfaces = nil
}
