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
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/metrics"
	"github.com/we-are-mono/kernsync/rib"
	"github.com/we-are-mono/kernsync/system"
	"github.com/we-are-mono/kernsync/types"
)

// KrtStats summarizes one route scan pass
type KrtStats struct {
	Pass      string        `json:"pass"`
	Tables    int           `json:"tables"`
	Observed  int           `json:"observed"`
	Withdrawn int           `json:"withdrawn"`
	Ignored   int           `json:"ignored"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

func (k *KrtStats) add(o KrtStats) {
	k.Tables += o.Tables
	k.Observed += o.Observed
	k.Withdrawn += o.Withdrawn
	k.Ignored += o.Ignored
	k.Skipped += o.Skipped
}

// ScanRoutes scans every bound kernel table in one pass. Errors of single
// tables are joined; the other tables are still scanned. The daemon scans
// per protocol through ScanTable; this is for callers driving a Syncer on
// their own.
func (s *Syncer) ScanRoutes() (KrtStats, error) {
	stats := KrtStats{Pass: uuid.NewString()}
	log := s.log.With(logger.Field{Key: "pass", Value: stats.Pass})
	start := time.Now()

	var errs []error
	for _, id := range s.registry.Tables() {
		ts, err := s.scanTable(log, id)
		stats.add(ts)
		if err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	stats.Duration = time.Since(start)
	s.metrics.ScanDone(metrics.KindRoutes, stats.Duration, err)

	if err != nil {
		log.Warn("Route scan incomplete", logger.Field{Key: "error", Value: err.Error()})
	} else {
		log.Debug("Route scan done",
			logger.Field{Key: "tables", Value: stats.Tables},
			logger.Field{Key: "observed", Value: stats.Observed},
			logger.Field{Key: "withdrawn", Value: stats.Withdrawn})
	}
	return stats, err
}

// ScanTable scans one bound kernel table
func (s *Syncer) ScanTable(id int) (KrtStats, error) {
	pass := uuid.NewString()
	start := time.Now()
	stats, err := s.scanTable(s.log.With(logger.Field{Key: "pass", Value: pass}), id)
	stats.Pass = pass
	stats.Duration = time.Since(start)
	s.metrics.ScanDone(metrics.KindRoutes, stats.Duration, err)
	return stats, err
}

func (s *Syncer) scanTable(log logger.Logger, id int) (KrtStats, error) {
	stats := KrtStats{}

	p := s.registry.Lookup(id)
	if p == nil {
		return stats, fmt.Errorf("table %d: %w", id, ErrNotBound)
	}
	stats.Tables = 1
	log = log.With(logger.Field{Key: "kernel_table", Value: id})

	var errs []error
	for _, view := range types.Views {
		ids, err := s.store.RouteList(id, view)
		if err != nil {
			// The other view is still worth scanning
			errs = append(errs, fmt.Errorf("%w: table %d %s routes: %w", ErrListFailed, id, view, err))
			continue
		}

		for _, rid := range ids {
			info, err := s.store.RouteGet(rid, view)
			if err != nil {
				log.Warn("Skipping route",
					logger.Field{Key: "route", Value: rid},
					logger.Field{Key: "status", Value: view.String()},
					logger.Field{Key: "error", Value: err.Error()})
				stats.Skipped++
				s.metrics.Skip(metrics.KindRoutes, "fetch")
				continue
			}
			s.importRoute(log, p, info, view, &stats)
		}
	}

	return stats, errors.Join(errs...)
}

// importRoute classifies one kernel route and hands it to the protocol's
// routing table.
func (s *Syncer) importRoute(log logger.Logger, p *Protocol, info system.RouteInfo, view types.Status, stats *KrtStats) {
	src, ok := Classify(info.Protocol, view, p.Tag())
	if !ok {
		stats.Ignored++
		return
	}
	if !info.Dest.Addr().Is4() || !info.Gateway.Is4() {
		stats.Skipped++
		s.metrics.Skip(metrics.KindRoutes, "family")
		return
	}

	intake := p.Intake()
	n := intake.Get(info.Dest)
	r := &rib.Route{
		Net: n,
		Attrs: &rib.Attributes{
			Proto:      p.Name(),
			Source:     rib.SourceInherit,
			Scope:      types.ScopeUniverse,
			Cast:       rib.CastUnicast,
			Dest:       rib.DestRouter,
			Gateway:    info.Gateway,
			Preference: rib.PreferenceInherited,
		},
		Kernel: rib.KernelInfo{Src: src, Proto: info.Protocol},
	}

	log.Debug("Kernel route",
		logger.Field{Key: "network", Value: n.Prefix.String()},
		logger.Field{Key: "gateway", Value: info.Gateway.String()},
		logger.Field{Key: "origin", Value: src.String()},
		logger.Field{Key: "status", Value: view.String()})

	if view == types.StatusActive {
		intake.RouteObserved(r)
		stats.Observed++
	} else {
		intake.RouteWithdrawn(r, nil)
		stats.Withdrawn++
	}
	s.metrics.RouteImported(p.Table(), view.String(), src.String())
}

// Export is the best route change hook of a protocol's routing table. It
// drops what the protocol must not export and passes the rest on like
// ReplaceRoute does.
func (s *Syncer) Export(tableID int, n *rib.Network, newRoute, oldRoute *rib.Route) error {
	p := s.registry.Lookup(tableID)
	if p == nil {
		n.SetSyncError(true)
		return fmt.Errorf("table %d: %w", tableID, ErrNotBound)
	}

	if !p.Preexport(newRoute) {
		newRoute = nil
	}
	if !p.Preexport(oldRoute) {
		oldRoute = nil
	}
	if newRoute == nil && oldRoute == nil {
		return nil
	}

	removeErr, installErr := s.replace(p, n, newRoute, oldRoute)
	if oldRoute != nil && removeErr == nil {
		s.forgetOwn(p, n, oldRoute.Attrs.Gateway)
	}
	return errors.Join(removeErr, installErr)
}

// forgetOwn queues the withdrawal of the protocol's import of a route it
// exported itself. The kernel will not report the removal back, since
// deleted routes carrying the daemon's tag are ignored.
func (s *Syncer) forgetOwn(p *Protocol, n *rib.Network, gw netip.Addr) {
	for _, r := range n.Routes() {
		if r.Attrs.Proto == p.Name() && r.Kernel.Src == types.SourceDaemon && r.Attrs.Gateway == gw {
			p.Intake().RouteWithdrawn(r, nil)
		}
	}
}

// ReplaceRoute makes the kernel table reflect a best route change: the old
// route is removed first, then the new one is installed. Either may be nil.
// The network is flagged out of sync when a step fails and clean otherwise.
// Unlike Export it applies no export filter.
func (s *Syncer) ReplaceRoute(tableID int, n *rib.Network, newRoute, oldRoute *rib.Route) error {
	p := s.registry.Lookup(tableID)
	if p == nil {
		s.log.Warn("Export to unbound kernel table",
			logger.Field{Key: "kernel_table", Value: tableID},
			logger.Field{Key: "network", Value: n.Prefix.String()})
		n.SetSyncError(true)
		return fmt.Errorf("table %d: %w", tableID, ErrNotBound)
	}

	removeErr, installErr := s.replace(p, n, newRoute, oldRoute)
	return errors.Join(removeErr, installErr)
}

func (s *Syncer) replace(p *Protocol, n *rib.Network, newRoute, oldRoute *rib.Route) (removeErr, installErr error) {
	tableID := p.Table()
	log := s.log.With(
		logger.Field{Key: "kernel_table", Value: tableID},
		logger.Field{Key: "network", Value: n.Prefix.String()})

	if oldRoute != nil {
		removeErr = s.removeRoute(log, tableID, n.Prefix, oldRoute)
		s.exported(tableID, n, "remove", oldRoute, removeErr)
	}
	if newRoute != nil {
		installErr = s.installRoute(log, tableID, p.Tag(), n.Prefix, newRoute)
		s.exported(tableID, n, "install", newRoute, installErr)
	}

	failed := removeErr != nil || installErr != nil
	n.SetSyncError(failed)
	if failed {
		log.Warn("Kernel table out of sync",
			logger.Field{Key: "error", Value: errors.Join(removeErr, installErr).Error()})
	}
	return removeErr, installErr
}

func (s *Syncer) exported(tableID int, n *rib.Network, op string, r *rib.Route, err error) {
	s.metrics.Export(tableID, op, err)
	if s.onExport != nil {
		s.onExport(ExportEvent{
			Table:   tableID,
			Network: n.Prefix,
			Op:      op,
			Gateway: r.Attrs.Gateway,
			Err:     err,
		})
	}
}

// removeRoute deletes the first active kernel route matching destination
// and gateway of r.
func (s *Syncer) removeRoute(log logger.Logger, tableID int, dest netip.Prefix, r *rib.Route) error {
	ids, err := s.store.RouteList(tableID, types.StatusActive)
	if err != nil {
		return fmt.Errorf("%w: table %d routes: %w", ErrListFailed, tableID, err)
	}

	for _, id := range ids {
		info, err := s.store.RouteGet(id, types.StatusActive)
		if err != nil {
			continue
		}
		if info.Dest != dest || info.Gateway != r.Attrs.Gateway {
			continue
		}

		if err := s.store.RouteDelete(id); err != nil {
			return fmt.Errorf("delete %s via %s: %w", dest, r.Attrs.Gateway, err)
		}
		log.Info("Removed route from kernel",
			logger.Field{Key: "gateway", Value: r.Attrs.Gateway.String()})
		return nil
	}

	log.Debug("Route to remove not in kernel",
		logger.Field{Key: "gateway", Value: r.Attrs.Gateway.String()})
	return nil
}

// installRoute creates r in the kernel table with the daemon's tag. An
// identical route carrying the tag counts as installed. Other routes
// carrying the tag are stale leftovers and get replaced; a route with any
// other tag blocks the install.
func (s *Syncer) installRoute(log logger.Logger, tableID, tag int, dest netip.Prefix, r *rib.Route) error {
	if r.Attrs.Dest != rib.DestRouter || !r.Attrs.Gateway.IsValid() {
		return fmt.Errorf("%s (%s): %w", dest, r.Attrs.Dest, ErrUnsupportedRoute)
	}

	ids, err := s.store.RouteList(tableID, types.StatusActive)
	if err != nil {
		return fmt.Errorf("%w: table %d routes: %w", ErrListFailed, tableID, err)
	}

	type staleRoute struct {
		id int
		gw netip.Addr
	}
	var stale []staleRoute
	for _, id := range ids {
		info, err := s.store.RouteGet(id, types.StatusActive)
		if err != nil || info.Dest != dest {
			continue
		}
		if info.Protocol != tag {
			return fmt.Errorf("%s via %s (kernel has via %s, proto %d): %w",
				dest, r.Attrs.Gateway, info.Gateway, info.Protocol, ErrDuplicateRoute)
		}
		if info.Gateway == r.Attrs.Gateway {
			log.Debug("Route already in kernel",
				logger.Field{Key: "gateway", Value: r.Attrs.Gateway.String()})
			return nil
		}
		stale = append(stale, staleRoute{id: id, gw: info.Gateway})
	}

	for _, sr := range stale {
		if err := s.store.RouteDelete(sr.id); err != nil {
			return fmt.Errorf("delete stale %s via %s: %w", dest, sr.gw, err)
		}
		log.Info("Removed stale route from kernel",
			logger.Field{Key: "gateway", Value: sr.gw.String()})
	}

	info := system.RouteInfo{
		Table:    tableID,
		Dest:     dest,
		Gateway:  r.Attrs.Gateway,
		Protocol: tag,
	}
	if r.Attrs.Iface != nil {
		info.LinkIndex = r.Attrs.Iface.Index
	}

	if _, err := s.store.RouteCreate(tableID, info); err != nil {
		return fmt.Errorf("create %s via %s: %w", dest, r.Attrs.Gateway, err)
	}

	log.Info("Installed route in kernel",
		logger.Field{Key: "gateway", Value: r.Attrs.Gateway.String()},
		logger.Field{Key: "proto", Value: tag})
	return nil
}
