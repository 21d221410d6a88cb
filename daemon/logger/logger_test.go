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

package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []Entry {
	t.Helper()

	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Format: "json"}, []Backend{NewBufferBackend(&buf, "json")}, nil)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown too")

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "error", entries[1].Level)
}

func TestLoggerWithKeepsAllFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Component: "kernsync"}, []Backend{NewBufferBackend(&buf, "json")}, nil)

	child := l.With(
		Field{Key: "component", Value: "kernel"},
		Field{Key: "kernel_table", Value: 254})
	child.Info("Route installed", Field{Key: "network", Value: "10.0.0.0/8"})

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "kernel", entries[0].Component)
	assert.Equal(t, "Route installed", entries[0].Message)
	assert.EqualValues(t, 254, entries[0].Fields["kernel_table"])
	assert.Equal(t, "10.0.0.0/8", entries[0].Fields["network"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info"}, []Backend{NewBufferBackend(&buf, "text")}, nil)

	l.With(Field{Key: "component", Value: "scheduler"}).Info("started", Field{Key: "protocols", Value: 2})

	out := buf.String()
	assert.Contains(t, out, "[info] [scheduler] started")
	assert.Contains(t, out, "protocols=2")
}

func TestNamedFollowsInit(t *testing.T) {
	prevStd, prevEmitter := std, globalEmitter
	defer func() { std, globalEmitter = prevStd, prevEmitter }()

	named := Named("observer")

	// Nothing is written before Init
	std = nil
	named.Info("dropped")

	var buf bytes.Buffer
	Init(Config{Level: "info"}, []Backend{NewBufferBackend(&buf, "json")}, nil)
	named.With(Field{Key: "interface", Value: "eth0"}).Info("Link change detected")

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "observer", entries[0].Component)
	assert.Equal(t, "eth0", entries[0].Fields["interface"])
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	assert.Equal(t, l, l.With(Field{Key: "a", Value: 1}))
}

type collectingSubscriber struct {
	mu      sync.Mutex
	entries []*Entry
}

func (c *collectingSubscriber) OnLogEvent(e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *collectingSubscriber) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func TestEmitter(t *testing.T) {
	emitter := NewEmitter()
	sub := &collectingSubscriber{}
	emitter.Subscribe(sub)

	l := New(Config{Level: "info"}, nil, emitter)
	l.Info("one")
	l.Info("two")
	assert.Eventually(t, func() bool { return sub.count() == 2 }, time.Second, 10*time.Millisecond)

	emitter.Unsubscribe(sub)
	l.Info("three")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, sub.count())
}
