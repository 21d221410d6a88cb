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

// Package kernel synchronizes the host's links, addresses and routing tables
// with the daemon. Scans pull kernel state into the interface layer and the
// routing tables; export pushes the daemon's best routes into the kernel.
//
// Nothing here locks or blocks on its own: every entry point is expected to
// run on the daemon's event loop.
package kernel

import (
	"net/netip"

	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/metrics"
	"github.com/we-are-mono/kernsync/system"
	"github.com/we-are-mono/kernsync/types"
)

// InterfaceLayer owns the canonical interfaces and addresses.
type InterfaceLayer interface {
	StartUpdate()
	EndUpdate()
	Update(ifc types.Interface) *types.Interface
	FindByIndex(index int) *types.Interface
	UpdateAddr(a types.InterfaceAddress) bool
	DeleteAddr(a types.InterfaceAddress) bool
}

// ExportEvent describes one attempted kernel table change
type ExportEvent struct {
	Table   int
	Network netip.Prefix
	Op      string // install or remove
	Gateway netip.Addr
	Err     error
}

// Syncer runs scans and exports against one store
type Syncer struct {
	store    system.Store
	names    system.IndexResolver
	ifaces   InterfaceLayer
	registry *Registry
	metrics  *metrics.Collector
	onExport func(ExportEvent)
	log      logger.Logger
}

// NewSyncer wires a syncer. log may be nil.
func NewSyncer(store system.Store, names system.IndexResolver, ifaces InterfaceLayer, registry *Registry, log logger.Logger) *Syncer {
	if log == nil {
		log = logger.Nop()
	}
	return &Syncer{
		store:    store,
		names:    names,
		ifaces:   ifaces,
		registry: registry,
		log:      log,
	}
}

// SetMetrics attaches a metrics collector
func (s *Syncer) SetMetrics(m *metrics.Collector) {
	s.metrics = m
}

// OnExport registers a function called after every install or removal
func (s *Syncer) OnExport(fn func(ExportEvent)) {
	s.onExport = fn
}

// Registry returns the table binding registry
func (s *Syncer) Registry() *Registry {
	return s.registry
}
