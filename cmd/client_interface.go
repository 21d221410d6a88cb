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
	"encoding/json"
	"fmt"

	"github.com/we-are-mono/kernsync/client"
	"github.com/we-are-mono/kernsync/daemon"
)

// ClientInterface defines the interface for communicating with the kernsync daemon.
// This interface allows for easy testing by enabling mock implementations.
type ClientInterface interface {
	Send(req daemon.Request) (*daemon.Response, error)
}

// realClient wraps the actual client.Send function to implement ClientInterface.
type realClient struct{}

func (r *realClient) Send(req daemon.Request) (*daemon.Response, error) {
	return client.Send(req)
}

// defaultClient is the default client used by CLI commands.
// Tests can replace this with a mock implementation.
var defaultClient ClientInterface = &realClient{}

// request sends req and decodes the response data into out, which may be nil
func request(c ClientInterface, req daemon.Request, out interface{}) (*daemon.Response, error) {
	resp, err := c.Send(req)
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, fmt.Errorf("%s", resp.Error)
	}

	if out != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to read response data: %w", err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return resp, nil
}
