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
)

// ErrLoopStopped is returned for work submitted to a loop that is not running
var ErrLoopStopped = errors.New("event loop stopped")

// Loop runs submitted functions one at a time on a single goroutine. All
// scans and exports go through it, so the routing state is only ever
// mutated from one place.
type Loop struct {
	tasks chan func()
	done  chan struct{}
}

// NewLoop creates a loop; nothing runs until Run is called
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func()),
		done:  make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// Do runs fn on the loop and waits for it to finish
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrLoopStopped
	}

	<-finished
	return nil
}

// Done is closed once Run returned
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
