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
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/history"
	"github.com/we-are-mono/kernsync/iface"
	"github.com/we-are-mono/kernsync/kernel"
	"github.com/we-are-mono/kernsync/metrics"
	"github.com/we-are-mono/kernsync/rib"
	"github.com/we-are-mono/kernsync/system"
	"github.com/we-are-mono/kernsync/types"
)

// Options are the collaborators of an Engine. Metrics and History may be nil.
type Options struct {
	Store   system.Store
	Names   system.IndexResolver
	Metrics *metrics.Collector
	History *history.Store
	Log     logger.Logger
}

// protocolState is one configured kernel protocol with its routing table
type protocolState struct {
	proto *kernel.Protocol
	table *rib.Table

	// guarded by Engine.mu
	lastScan *kernel.KrtStats
	lastErr  string
}

// Engine wires the sync core together: one interface layer, one routing
// table per kernel protocol, the static routes and the export path. All
// state changing work runs on the engine's loop.
type Engine struct {
	cfg      *types.Config
	log      logger.Logger
	loop     *Loop
	ifaces   *iface.Table
	registry *kernel.Registry
	syncer   *kernel.Syncer
	metrics  *metrics.Collector
	history  *history.Store
	statics  *staticRoutes

	protocols []*protocolState
	byName    map[string]*protocolState

	// markChange is called right before the engine changes a kernel table
	markChange func()

	mu         sync.RWMutex
	started    time.Time
	lastKif    *kernel.KifStats
	lastKifErr string
}

// NewEngine builds an engine for cfg. Nothing touches the kernel until Start.
func NewEngine(cfg *types.Config, opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = logger.Named("engine")
	}

	ifaces := iface.NewTable(log.With(logger.Field{Key: "layer", Value: "iface"}))
	registry := kernel.NewRegistry()
	syncer := kernel.NewSyncer(opts.Store, opts.Names, ifaces, registry,
		log.With(logger.Field{Key: "layer", Value: "kernel"}))
	syncer.SetMetrics(opts.Metrics)

	e := &Engine{
		cfg:      cfg,
		log:      log,
		loop:     NewLoop(),
		ifaces:   ifaces,
		registry: registry,
		syncer:   syncer,
		metrics:  opts.Metrics,
		history:  opts.History,
		byName:   make(map[string]*protocolState),
	}
	syncer.OnExport(e.recordExport)

	for _, kc := range cfg.Kernel {
		kernel.InitConfig(&kc)
		table := rib.NewTable(kc.Name, log.With(logger.Field{Key: "layer", Value: "rib"}))
		ps := &protocolState{
			proto: kernel.NewProtocol(kc, registry, table, log),
			table: table,
		}
		table.OnBestChange(e.exportHook(ps))
		e.protocols = append(e.protocols, ps)
		e.byName[kc.Name] = ps
	}

	e.statics = newStaticRoutes(cfg.StaticRoutes, e.tableForKernel, ifaces, log)
	return e
}

// SetChangeMarker registers fn to be called before every kernel change
// the engine makes. Must be called before Start.
func (e *Engine) SetChangeMarker(fn func()) {
	e.markChange = fn
}

// Loop returns the engine's event loop
func (e *Engine) Loop() *Loop {
	return e.loop
}

// Config returns the configuration the engine was built from
func (e *Engine) Config() *types.Config {
	return e.cfg
}

func (e *Engine) tableForKernel(kernelTable int) *rib.Table {
	for _, ps := range e.protocols {
		if ps.proto.Table() == kernelTable {
			return ps.table
		}
	}
	return nil
}

// exportHook pushes best route changes of a protocol's table into the
// kernel table it syncs.
func (e *Engine) exportHook(ps *protocolState) rib.BestChangeFunc {
	return func(n *rib.Network, newBest, oldBest *rib.Route) {
		if !ps.proto.Running() {
			return
		}
		if e.markChange != nil && (ps.proto.Preexport(newBest) || ps.proto.Preexport(oldBest)) {
			e.markChange()
		}
		if err := e.syncer.Export(ps.proto.Table(), n, newBest, oldBest); err != nil {
			e.log.Debug("Export failed",
				logger.Field{Key: "proto", Value: ps.proto.Name()},
				logger.Field{Key: "network", Value: n.Prefix.String()},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}
}

func (e *Engine) recordExport(ev kernel.ExportEvent) {
	if e.history == nil {
		return
	}
	rec := history.ExportRecord{
		Time:    time.Now(),
		Table:   ev.Table,
		Network: ev.Network.String(),
		Op:      ev.Op,
		Gateway: ev.Gateway.String(),
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	if err := e.history.RecordExport(rec); err != nil {
		e.log.Warn("Failed to record export", logger.Field{Key: "error", Value: err.Error()})
	}
}

func (e *Engine) recordScan(kind, pass string, started time.Time, took time.Duration, observed, withdrawn, skipped int, scanErr error) {
	if e.history == nil {
		return
	}
	rec := history.ScanRecord{
		Pass:      pass,
		Kind:      kind,
		Started:   started,
		Duration:  took,
		Observed:  observed,
		Withdrawn: withdrawn,
		Skipped:   skipped,
	}
	if scanErr != nil {
		rec.Error = scanErr.Error()
	}
	if err := e.history.RecordScan(rec); err != nil {
		e.log.Warn("Failed to record scan", logger.Field{Key: "error", Value: err.Error()})
	}
}

// start binds the protocols and runs the initial scans. Loop only.
func (e *Engine) start() {
	e.mu.Lock()
	e.started = time.Now()
	e.mu.Unlock()

	for _, ps := range e.protocols {
		ps.proto.Start()
	}
	e.scanInterfaces()
	e.scanRoutes("")

	e.log.Info("Engine started",
		logger.Field{Key: "protocols", Value: len(e.protocols)},
		logger.Field{Key: "static_routes", Value: e.statics.Len()})
}

// stop withdraws the daemon's routes from the kernel and releases the
// kernel tables. Loop only.
func (e *Engine) stop() {
	e.statics.withdraw()
	for _, ps := range e.protocols {
		removed := ps.table.RemoveProto(ps.proto.Name())
		ps.proto.Shutdown()
		e.log.Debug("Protocol routes dropped",
			logger.Field{Key: "proto", Value: ps.proto.Name()},
			logger.Field{Key: "routes", Value: removed})
	}
	e.log.Info("Engine stopped")
}

// scanInterfaces runs one interface scan and re-resolves the static
// routes against the result. Loop only.
func (e *Engine) scanInterfaces() ScanResult {
	started := time.Now()
	stats, err := e.syncer.ScanInterfaces()
	e.statics.sync()
	e.metrics.SetInterfaceCounts(len(e.ifaces.Interfaces()), len(e.ifaces.Addrs()))
	e.updateTableMetrics()
	e.recordScan(metrics.KindInterfaces, stats.Pass, started, stats.Duration,
		stats.Links+stats.AddrsUpdated, stats.AddrsDeleted, stats.Skipped, err)

	e.mu.Lock()
	e.lastKif = &stats
	e.lastKifErr = errString(err)
	e.mu.Unlock()

	return ScanResult{Kind: metrics.KindInterfaces, Interfaces: &stats, Error: errString(err)}
}

// scanRoutes scans the kernel table of one protocol, or of every protocol
// when name is empty, and applies the queued withdrawals. Loop only.
func (e *Engine) scanRoutes(name string) []ScanResult {
	var results []ScanResult
	for _, ps := range e.protocols {
		if name != "" && ps.proto.Name() != name {
			continue
		}

		started := time.Now()
		stats, err := e.syncer.ScanTable(ps.proto.Table())
		ps.table.Flush()
		e.recordScan(metrics.KindRoutes, stats.Pass, started, stats.Duration,
			stats.Observed, stats.Withdrawn, stats.Skipped, err)

		e.mu.Lock()
		ps.lastScan = &stats
		ps.lastErr = errString(err)
		e.mu.Unlock()

		results = append(results, ScanResult{
			Kind:     metrics.KindRoutes,
			Protocol: ps.proto.Name(),
			Routes:   &stats,
			Error:    errString(err),
		})
	}
	e.updateTableMetrics()
	return results
}

func (e *Engine) updateTableMetrics() {
	if e.metrics == nil {
		return
	}
	for _, ps := range e.protocols {
		networks, outOfSync := tableCounts(ps.table)
		e.metrics.SetTableCounts(ps.table.Name(), networks, outOfSync)
	}
}

func tableCounts(t *rib.Table) (networks, outOfSync int) {
	for _, n := range t.Networks() {
		networks++
		if n.SyncError() {
			outOfSync++
		}
	}
	return networks, outOfSync
}

// Start binds the protocols and runs the initial scans on the loop. The
// loop must be running.
func (e *Engine) Start() error {
	return e.loop.Do(e.start)
}

// Stop withdraws the daemon's routes and releases the kernel tables
func (e *Engine) Stop() error {
	return e.loop.Do(e.stop)
}

// ScanInterfaces runs an interface scan on the loop
func (e *Engine) ScanInterfaces() (ScanResult, error) {
	var res ScanResult
	err := e.loop.Do(func() { res = e.scanInterfaces() })
	return res, err
}

// ScanRoutes runs a route scan of one protocol, or all when name is empty
func (e *Engine) ScanRoutes(name string) ([]ScanResult, error) {
	if name != "" {
		if _, ok := e.byName[name]; !ok {
			return nil, fmt.Errorf("unknown protocol %q", name)
		}
	}
	var res []ScanResult
	err := e.loop.Do(func() { res = e.scanRoutes(name) })
	return res, err
}

// Scan runs the scans selected by kind: kif, krt or both when empty
func (e *Engine) Scan(kind string) ([]ScanResult, error) {
	switch kind {
	case metrics.KindInterfaces:
		res, err := e.ScanInterfaces()
		if err != nil {
			return nil, err
		}
		return []ScanResult{res}, nil
	case metrics.KindRoutes:
		return e.ScanRoutes("")
	case "", "all":
		var results []ScanResult
		err := e.loop.Do(func() {
			results = append(results, e.scanInterfaces())
			results = append(results, e.scanRoutes("")...)
		})
		return results, err
	default:
		return nil, fmt.Errorf("unknown scan kind %q (use kif, krt or all)", kind)
	}
}

// Status summarizes the engine
func (e *Engine) Status() StatusInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	info := StatusInfo{
		Interfaces:        len(e.ifaces.Interfaces()),
		Addresses:         len(e.ifaces.Addrs()),
		LastInterfaceScan: e.lastKif,
		LastInterfaceErr:  e.lastKifErr,
		StaticRoutes:      e.statics.Len(),
		Observer:          e.cfg.Observer.Enabled,
		Metrics:           e.cfg.Metrics.Listen,
		History:           e.history != nil,
	}
	if !e.started.IsZero() {
		info.Uptime = time.Since(e.started).Round(time.Second).String()
	}

	for _, ps := range e.protocols {
		networks, outOfSync := tableCounts(ps.table)
		info.Protocols = append(info.Protocols, ProtocolStatus{
			Name:      ps.proto.Name(),
			Table:     ps.proto.Table(),
			Tag:       ps.proto.Tag(),
			Running:   ps.proto.Running(),
			Networks:  networks,
			OutOfSync: outOfSync,
			LastScan:  ps.lastScan,
			LastError: ps.lastErr,
		})
	}
	return info
}

// Interfaces returns the interface layer's view
func (e *Engine) Interfaces() []InterfaceStatus {
	addrs := e.ifaces.Addrs()
	out := make([]InterfaceStatus, 0)
	for _, ifc := range e.ifaces.Interfaces() {
		st := InterfaceStatus{
			Name:      ifc.Name,
			Index:     ifc.Index,
			MTU:       ifc.MTU,
			Flags:     ifc.Flags.String(),
			Addresses: []AddressStatus{},
		}
		for _, a := range addrs {
			if a.IfIndex != ifc.Index {
				continue
			}
			st.Addresses = append(st.Addresses, AddressStatus{
				Address:   netip.PrefixFrom(a.IP, a.PrefixLen).String(),
				Network:   netip.PrefixFrom(a.Prefix, a.PrefixLen).String(),
				Broadcast: a.Broadcast.String(),
				Scope:     a.Scope.String(),
			})
		}
		out = append(out, st)
	}
	return out
}

// Routes returns the routing table of one protocol, or all when name is empty
func (e *Engine) Routes(name string) ([]TableStatus, error) {
	var out []TableStatus
	for _, ps := range e.protocols {
		if name != "" && ps.proto.Name() != name {
			continue
		}
		out = append(out, TableStatus{
			Name:        ps.table.Name(),
			KernelTable: ps.proto.Table(),
			Networks:    ps.table.Snapshot(),
		})
	}
	if name != "" && len(out) == 0 {
		return nil, fmt.Errorf("unknown protocol %q", name)
	}
	return out, nil
}

// Tables returns the kernel table bindings and the configured static routes
func (e *Engine) Tables() TablesInfo {
	info := TablesInfo{Bindings: []TableBinding{}}
	for _, id := range e.registry.Tables() {
		p := e.registry.Lookup(id)
		if p == nil {
			continue
		}
		info.Bindings = append(info.Bindings, TableBinding{
			KernelTable: id,
			Protocol:    p.Name(),
			Tag:         p.Tag(),
		})
	}
	if err := e.loop.Do(func() { info.StaticRoutes = e.statics.describe() }); err != nil {
		info.StaticRoutes = []StaticRouteStatus{}
	}
	return info
}

// Lookup finds the best route for addr in the table of one protocol, or of
// the first protocol when name is empty.
func (e *Engine) Lookup(name, address string) (*LookupResult, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}

	var ps *protocolState
	if name == "" {
		if len(e.protocols) == 0 {
			return nil, fmt.Errorf("no kernel protocol configured")
		}
		ps = e.protocols[0]
	} else if ps = e.byName[name]; ps == nil {
		return nil, fmt.Errorf("unknown protocol %q", name)
	}

	res := &LookupResult{Table: ps.table.Name(), Address: addr.String()}
	if r := ps.table.Lookup(addr); r != nil {
		st := r.Status()
		st.Best = true
		res.Network = r.Net.Prefix.String()
		res.Route = &st
	}
	return res, nil
}

// History returns recent scans and exports. kind filters scans, network
// filters exports.
func (e *Engine) History(kind, network string, limit int) (*HistoryData, error) {
	if e.history == nil {
		return nil, fmt.Errorf("history is disabled")
	}
	scans, err := e.history.Scans(kind, limit)
	if err != nil {
		return nil, err
	}
	exports, err := e.history.Exports(network, limit)
	if err != nil {
		return nil, err
	}
	return &HistoryData{Scans: scans, Exports: exports}, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
