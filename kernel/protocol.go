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

package kernel

import (
	"net/netip"
	"sync"

	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/rib"
	"github.com/we-are-mono/kernsync/system"
	"github.com/we-are-mono/kernsync/types"
)

// DefaultScanIntervalMS is the route scan period when none is configured
const DefaultScanIntervalMS = 60000

// Intake is the routing table a kernel protocol feeds
type Intake interface {
	// Get looks up the network for prefix, creating it if needed
	Get(prefix netip.Prefix) *rib.Network
	// RouteObserved attaches a route right away
	RouteObserved(r *rib.Route)
	// RouteWithdrawn queues a withdrawal; a nil replacement removes the route
	RouteWithdrawn(r *rib.Route, replacement *rib.Route)
}

// InitConfig fills in the defaults of a kernel protocol configuration.
func InitConfig(cfg *types.KernelConfig) {
	if cfg.Table == 0 {
		cfg.Table = system.MainTable
	}
	if cfg.Protocol == 0 {
		cfg.Protocol = DefaultProtocolTag
	}
	if cfg.ScanIntervalMS == 0 {
		cfg.ScanIntervalMS = DefaultScanIntervalMS
	}
}

// CopyConfig copies the sync specific fields of src into dst.
func CopyConfig(dst, src *types.KernelConfig) {
	dst.Table = src.Table
	dst.Protocol = src.Protocol
}

// Protocol is one kernel protocol instance: it owns the sync of one kernel
// table and feeds one routing table.
type Protocol struct {
	registry *Registry
	intake   Intake
	log      logger.Logger

	mu      sync.RWMutex
	cfg     types.KernelConfig
	running bool
}

// NewProtocol creates a stopped protocol instance
func NewProtocol(cfg types.KernelConfig, registry *Registry, intake Intake, log logger.Logger) *Protocol {
	InitConfig(&cfg)
	if log == nil {
		log = logger.Nop()
	}
	return &Protocol{
		registry: registry,
		intake:   intake,
		cfg:      cfg,
		log: log.With(
			logger.Field{Key: "proto", Value: cfg.Name},
			logger.Field{Key: "kernel_table", Value: cfg.Table}),
	}
}

// Name returns the instance name
func (p *Protocol) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.Name
}

// Table returns the kernel table id the instance syncs
func (p *Protocol) Table() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.Table
}

// Tag returns the origin tag put on exported routes
func (p *Protocol) Tag() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.Protocol
}

// Config returns a copy of the configuration
func (p *Protocol) Config() types.KernelConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Intake returns the routing table the protocol feeds
func (p *Protocol) Intake() Intake {
	return p.intake
}

// Running reports whether the protocol is started
func (p *Protocol) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Start binds the protocol to its kernel table
func (p *Protocol) Start() {
	p.mu.Lock()
	p.running = true
	table := p.cfg.Table
	p.mu.Unlock()

	if prev := p.registry.Lookup(table); prev != nil && prev != p {
		p.log.Warn("Kernel table already bound, taking over",
			logger.Field{Key: "previous", Value: prev.Name()})
	}
	p.registry.Bind(table, p)
	p.log.Info("Kernel protocol started")
}

// Shutdown releases the kernel table
func (p *Protocol) Shutdown() {
	p.mu.Lock()
	p.running = false
	table := p.cfg.Table
	p.mu.Unlock()

	p.registry.Unbind(table, p)
	p.log.Info("Kernel protocol stopped")
}

// Reconfigure adopts newCfg if it can be applied without a restart, which
// is the case only when the kernel table stays the same. It returns false
// when the protocol must be restarted.
func (p *Protocol) Reconfigure(newCfg, oldCfg types.KernelConfig) bool {
	InitConfig(&newCfg)
	InitConfig(&oldCfg)
	if newCfg.Table != oldCfg.Table {
		return false
	}

	p.mu.Lock()
	p.cfg = newCfg
	p.mu.Unlock()
	return true
}

// Preexport reports whether a route may be exported by this protocol.
// Routes the protocol imported itself are never sent back.
func (p *Protocol) Preexport(r *rib.Route) bool {
	if r == nil || r.Attrs == nil || r.Attrs.Proto == p.Name() {
		return false
	}
	return Capable(r)
}
