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
	"github.com/we-are-mono/kernsync/daemon"
)

// mockClient is a mock implementation of ClientInterface for testing.
type mockClient struct {
	sendFunc func(req daemon.Request) (*daemon.Response, error)
}

func (m *mockClient) Send(req daemon.Request) (*daemon.Response, error) {
	if m.sendFunc != nil {
		return m.sendFunc(req)
	}
	return &daemon.Response{Success: true, Message: "OK"}, nil
}

// replyWith returns a client answering every request with data, checking
// the command first
func replyWith(t assertT, command string, data interface{}) *mockClient {
	return &mockClient{
		sendFunc: func(req daemon.Request) (*daemon.Response, error) {
			if req.Command != command {
				t.Errorf("unexpected command %q, want %q", req.Command, command)
			}
			return &daemon.Response{Success: true, Data: data}, nil
		},
	}
}

type assertT interface {
	Errorf(format string, args ...interface{})
}
