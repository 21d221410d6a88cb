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
	"context"
	"errors"
	"sync"
	"time"

	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/metrics"
	"github.com/we-are-mono/kernsync/types"
)

// Scheduler runs the periodic scans of an engine, plus the early scans
// requested when the observer sees a change.
type Scheduler struct {
	engine *Engine
	log    logger.Logger
	kif    chan struct{}
	krt    chan struct{}
}

// NewScheduler creates a scheduler for e
func NewScheduler(e *Engine, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Named("scheduler")
	}
	return &Scheduler{
		engine: e,
		log:    log,
		kif:    make(chan struct{}, 1),
		krt:    make(chan struct{}, 1),
	}
}

// RequestScan asks for an early scan of the given kind. Requests made while
// one is already pending are merged.
func (s *Scheduler) RequestScan(kind string) {
	ch := s.krt
	if kind == metrics.KindInterfaces {
		ch = s.kif
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done or the engine loop stops
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	kifEvery := time.Duration(s.engine.cfg.InterfaceScanMS) * time.Millisecond
	if kifEvery <= 0 {
		kifEvery = time.Duration(types.DefaultInterfaceScanMS) * time.Millisecond
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.every(ctx, kifEvery, s.kif, func() error {
			_, err := s.engine.ScanInterfaces()
			return err
		})
	}()

	for _, ps := range s.engine.protocols {
		name := ps.proto.Name()
		every := time.Duration(ps.proto.Config().ScanIntervalMS) * time.Millisecond
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.every(ctx, every, nil, func() error {
				_, err := s.engine.ScanRoutes(name)
				return err
			})
		}()
	}

	// Early route scans cover every table
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.every(ctx, 0, s.krt, func() error {
			_, err := s.engine.ScanRoutes("")
			return err
		})
	}()

	s.log.Info("Scan scheduler started",
		logger.Field{Key: "interface_interval", Value: kifEvery.String()},
		logger.Field{Key: "protocols", Value: len(s.engine.protocols)})

	wg.Wait()
	s.log.Info("Scan scheduler stopped")
}

// every calls scan each period (none when zero) and on every kick
func (s *Scheduler) every(ctx context.Context, period time.Duration, kick <-chan struct{}, scan func() error) {
	var tick <-chan time.Time
	if period > 0 {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.engine.loop.Done():
			return
		case <-tick:
		case <-kick:
		}

		if err := scan(); errors.Is(err, ErrLoopStopped) {
			return
		}
	}
}
