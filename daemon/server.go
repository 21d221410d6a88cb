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

package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/metrics"
)

// DefaultHistoryLimit is the number of history entries returned when the
// request sets none
const DefaultHistoryLimit = 20

// GetSocketPath returns the socket path, preferring KERNSYNC_SOCKET_PATH env var
func GetSocketPath() string {
	if path := os.Getenv("KERNSYNC_SOCKET_PATH"); path != "" {
		return path
	}
	return "/var/run/kernsync.sock"
}

// handlerFunc is a function that handles a daemon command
type handlerFunc func(Request) Response

// Server is the kernsync daemon: it owns the engine, its scan scheduler,
// the network observer, the metrics endpoint and the control socket.
type Server struct {
	engine          *Engine
	metrics         *metrics.Collector
	socketPath      string
	listener        net.Listener
	done            chan struct{}
	ready           chan struct{}
	handlers        map[string]handlerFunc
	scheduler       *Scheduler
	networkObserver *NetworkObserver
	metricsServer   *http.Server
	cancel          context.CancelFunc
	stopOnce        sync.Once
}

// NewServer creates the control socket for engine. collector may be nil.
func NewServer(engine *Engine, collector *metrics.Collector) (*Server, error) {
	socketPath := GetSocketPath()
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0666); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s := &Server{
		engine:     engine,
		metrics:    collector,
		socketPath: socketPath,
		listener:   listener,
		done:       make(chan struct{}),
		ready:      make(chan struct{}),
		scheduler:  NewScheduler(engine, logger.Named("scheduler")),
	}

	// Initialize command handlers
	s.handlers = map[string]handlerFunc{
		"status":     func(req Request) Response { return s.handleStatus() },
		"interfaces": func(req Request) Response { return s.handleInterfaces() },
		"routes":     func(req Request) Response { return s.handleRoutes(req.Table) },
		"tables":     func(req Request) Response { return s.handleTables() },
		"scan":       func(req Request) Response { return s.handleScan(req.Kind, req.Table) },
		"lookup":     func(req Request) Response { return s.handleLookup(req.Table, req.Address) },
		"history":    func(req Request) Response { return s.handleHistory(req.Kind, req.Network, req.Limit) },
	}

	return s, nil
}

// Start runs the engine and serves the control socket until Stop is called
func (s *Server) Start() error {
	logger.Info("kernsync daemon starting")

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.engine.Loop().Run(ctx)

	// Start network observer to trigger early scans on external changes
	cfg := s.engine.Config()
	if cfg.Observer.Enabled {
		registry := s.engine.registry
		s.networkObserver = NewNetworkObserver(s.scheduler,
			func(table int) bool { return registry.Lookup(table) != nil },
			logger.Named("observer"))
		s.engine.SetChangeMarker(s.networkObserver.MarkChange)
		go func() {
			if err := s.networkObserver.Run(s.done); err != nil {
				logger.Error("Network observer failed", logger.Field{Key: "error", Value: err.Error()})
			}
		}()
	}

	if err := s.engine.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	go s.scheduler.Run(ctx)

	if cfg.Metrics.Listen != "" && s.metrics != nil {
		s.startMetricsServer(cfg.Metrics.Listen)
	}

	logger.Info("Daemon listening", logger.Field{Key: "socket", Value: s.socketPath})
	close(s.ready)

	// Accept connections
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if we're shutting down
			select {
			case <-s.done:
				return nil
			default:
				logger.Error("Failed to accept connection",
					logger.Field{Key: "error", Value: err.Error()})
				continue
			}
		}

		go s.handleConnection(conn)
	}
}

func (s *Server) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())

	s.metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics endpoint listening", logger.Field{Key: "listen", Value: addr})
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics endpoint failed", logger.Field{Key: "error", Value: err.Error()})
		}
	}()
}

// Ready is closed once the engine ran its initial scans
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop withdraws the daemon's routes from the kernel and shuts down
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}

		if s.cancel != nil {
			if err := s.engine.Stop(); err != nil {
				logger.Warn("Engine did not stop cleanly", logger.Field{Key: "error", Value: err.Error()})
			}
			s.cancel()
		}

		if s.metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.metricsServer.Shutdown(ctx)
		}

		os.Remove(s.socketPath)
	})
	return nil
}

func (s *Server) handleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)
	data, err := reader.ReadBytes('\n')
	if err != nil {
		conn.Close()
		return
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendResponse(conn, Response{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
		})
		conn.Close()
		return
	}

	// Handle streaming log subscription specially (keeps connection open)
	if req.Command == "logs-subscribe" {
		defer conn.Close()

		filter := req.LogFilter
		if filter == nil {
			filter = &LogFilter{}
		}

		s.handleLogsSubscribe(conn, filter)
		return
	}

	defer conn.Close()
	resp := s.handleRequest(req)
	s.sendResponse(conn, resp)
}

func (s *Server) handleRequest(req Request) Response {
	handler, exists := s.handlers[req.Command]
	if !exists {
		return Response{
			Success: false,
			Error:   fmt.Sprintf("unknown command: %s", req.Command),
		}
	}
	return handler(req)
}

func (s *Server) handleStatus() Response {
	return Response{
		Success: true,
		Data:    s.engine.Status(),
	}
}

func (s *Server) handleInterfaces() Response {
	return Response{
		Success: true,
		Data:    s.engine.Interfaces(),
	}
}

func (s *Server) handleRoutes(table string) Response {
	tables, err := s.engine.Routes(table)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	return Response{Success: true, Data: tables}
}

func (s *Server) handleTables() Response {
	return Response{
		Success: true,
		Data:    s.engine.Tables(),
	}
}

func (s *Server) handleScan(kind, table string) Response {
	var (
		results []ScanResult
		err     error
	)
	if kind == metrics.KindRoutes && table != "" {
		results, err = s.engine.ScanRoutes(table)
	} else {
		results, err = s.engine.Scan(kind)
	}
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}

	msg := fmt.Sprintf("%d scan(s) completed", len(results))
	if failed > 0 {
		msg = fmt.Sprintf("%d scan(s) completed, %d with errors", len(results), failed)
	}
	return Response{Success: true, Message: msg, Data: results}
}

func (s *Server) handleLookup(table, address string) Response {
	if address == "" {
		return Response{Success: false, Error: "address required"}
	}
	res, err := s.engine.Lookup(table, address)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	if res.Route == nil {
		return Response{Success: true, Message: fmt.Sprintf("no route to %s", res.Address), Data: res}
	}
	return Response{Success: true, Data: res}
}

func (s *Server) handleHistory(kind, network string, limit int) Response {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	data, err := s.engine.History(kind, network, limit)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	return Response{Success: true, Data: data}
}

func (s *Server) sendResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Error("Failed to marshal response",
			logger.Field{Key: "error", Value: err.Error()})
		return
	}

	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		logger.Error("Failed to write response",
			logger.Field{Key: "error", Value: err.Error()})
	}
}

// handleLogsSubscribe streams log entries until the client disconnects
func (s *Server) handleLogsSubscribe(conn net.Conn, filter *LogFilter) {
	subscriber := NewSocketLogSubscriber(conn, filter)

	emitter := logger.GetEmitter()
	if emitter == nil {
		logger.Error("Logger emitter not initialized")
		return
	}

	emitter.Subscribe(subscriber)
	defer func() {
		emitter.Unsubscribe(subscriber)
		subscriber.Close()
	}()

	logger.Info("Client subscribed to log stream",
		logger.Field{Key: "level", Value: filter.Level},
		logger.Field{Key: "component", Value: filter.Component})

	// Keep connection open until client disconnects
	buffer := make([]byte, 1)
	for {
		if _, err := conn.Read(buffer); err != nil {
			logger.Info("Client unsubscribed from log stream")
			return
		}
	}
}
