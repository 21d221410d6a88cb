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

// Package client provides a client library for communicating with the kernsync daemon.
package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/we-are-mono/kernsync/daemon"
)

// GetSocketPath returns the socket path, preferring KERNSYNC_SOCKET_PATH env var
func GetSocketPath() string {
	if path := os.Getenv("KERNSYNC_SOCKET_PATH"); path != "" {
		return path
	}
	return "/var/run/kernsync.sock"
}

func dial() (net.Conn, error) {
	conn, err := net.Dial("unix", GetSocketPath())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon (is it running?): %w", err)
	}
	return conn, nil
}

func writeRequest(conn net.Conn, req daemon.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	data = append(data, '\n')
	if _, err = conn.Write(data); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

// Send issues one request and waits for the daemon's reply
func Send(req daemon.Request) (*daemon.Response, error) {
	conn, err := dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := writeRequest(conn, req); err != nil {
		return nil, err
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp daemon.Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &resp, nil
}

// StreamLogs subscribes to the daemon's log stream and calls handler with
// every JSON encoded entry. It returns when the daemon closes the stream
// or handler fails.
func StreamLogs(filter *daemon.LogFilter, handler func([]byte) error) error {
	conn, err := dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	req := daemon.Request{Command: "logs-subscribe", LogFilter: filter}
	if err := writeRequest(conn, req); err != nil {
		return err
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 1 {
			if herr := handler(line[:len(line)-1]); herr != nil {
				return herr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read log stream: %w", err)
		}
	}
}
