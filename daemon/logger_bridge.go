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
	"io"
	"strings"
	"sync"

	"github.com/we-are-mono/kernsync/daemon/logger"
)

// SocketLogSubscriber streams log events as JSON lines to a client connection
type SocketLogSubscriber struct {
	w      io.Writer
	filter *LogFilter
	mu     sync.Mutex
	closed bool
}

// NewSocketLogSubscriber creates a subscriber writing to w
func NewSocketLogSubscriber(w io.Writer, filter *LogFilter) *SocketLogSubscriber {
	return &SocketLogSubscriber{
		w:      w,
		filter: filter,
	}
}

// OnLogEvent writes the log entry if it matches the filter
func (s *SocketLogSubscriber) OnLogEvent(entry *logger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.matches(entry) {
		return nil
	}

	logEventJSON, err := entry.ToJSON()
	if err != nil {
		return err
	}

	if _, err := s.w.Write(append(logEventJSON, '\n')); err != nil {
		// The client went away
		s.closed = true
		return err
	}

	return nil
}

func (s *SocketLogSubscriber) matches(entry *logger.Entry) bool {
	if s.filter == nil {
		return true
	}
	if s.filter.Level != "" && !strings.EqualFold(entry.Level, s.filter.Level) {
		return false
	}
	if s.filter.Component != "" && entry.Component != s.filter.Component {
		return false
	}
	return true
}

// Close marks the subscriber as closed
func (s *SocketLogSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
