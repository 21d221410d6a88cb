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
	"strings"

	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/iface"
	"github.com/we-are-mono/kernsync/rib"
	"github.com/we-are-mono/kernsync/system"
	"github.com/we-are-mono/kernsync/types"
)

// StaticProto is the protocol name static routes are attached under
const StaticProto = "static"

type staticRoute struct {
	name   string
	cfg    types.Route
	table  *rib.Table
	prefix netip.Prefix
	gw     netip.Addr
	route  *rib.Route // currently attached, nil if none
}

// staticRoutes feeds the configured static routes into the routing tables.
// Their outgoing interface is resolved against the interface layer after
// every interface scan.
type staticRoutes struct {
	routes []*staticRoute
	ifaces *iface.Table
	log    logger.Logger
}

// parseDestination parses a route destination, accepting "default"
func parseDestination(dest string) (netip.Prefix, error) {
	if dest == "default" {
		return netip.PrefixFrom(netip.IPv4Unspecified(), 0), nil
	}
	prefix, err := netip.ParsePrefix(dest)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid destination %q: %w", dest, err)
	}
	if !prefix.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("destination %q is not IPv4", dest)
	}
	return prefix.Masked(), nil
}

// newStaticRoutes parses the enabled routes. tableFor maps a kernel table id
// to the routing table of the protocol syncing it, or nil when none does.
// Routes that cannot be placed are logged and left out.
func newStaticRoutes(cfgs []types.Route, tableFor func(kernelTable int) *rib.Table, ifaces *iface.Table, log logger.Logger) *staticRoutes {
	s := &staticRoutes{ifaces: ifaces, log: log}

	seen := make(map[string]string)
	for i, rc := range cfgs {
		name := rc.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if !rc.Enabled {
			log.Debug("Static route disabled", logger.Field{Key: "route", Value: name})
			continue
		}

		prefix, err := parseDestination(rc.Destination)
		if err != nil {
			log.Warn("Skipping static route",
				logger.Field{Key: "route", Value: name},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		gw, err := netip.ParseAddr(rc.Gateway)
		if err != nil || !gw.Is4() {
			log.Warn("Skipping static route without IPv4 gateway",
				logger.Field{Key: "route", Value: name},
				logger.Field{Key: "gateway", Value: rc.Gateway})
			continue
		}

		kernelTable := rc.Table
		if kernelTable == 0 {
			kernelTable = system.MainTable
		}
		table := tableFor(kernelTable)
		if table == nil {
			log.Warn("Skipping static route for unsynced kernel table",
				logger.Field{Key: "route", Value: name},
				logger.Field{Key: "kernel_table", Value: kernelTable})
			continue
		}

		// One static route per network and table, the later one wins
		key := fmt.Sprintf("%s/%s", table.Name(), prefix)
		if prev, dup := seen[key]; dup {
			log.Warn("Static route replaces an earlier one",
				logger.Field{Key: "route", Value: name},
				logger.Field{Key: "replaced", Value: prev},
				logger.Field{Key: "network", Value: prefix.String()})
			s.drop(prev)
		}
		seen[key] = name

		s.routes = append(s.routes, &staticRoute{
			name:   name,
			cfg:    rc,
			table:  table,
			prefix: prefix,
			gw:     gw,
		})
	}
	return s
}

func (s *staticRoutes) drop(name string) {
	for i, sr := range s.routes {
		if sr.name == name {
			s.routes = append(s.routes[:i], s.routes[i+1:]...)
			return
		}
	}
}

// Len returns the number of static routes in use
func (s *staticRoutes) Len() int {
	return len(s.routes)
}

// resolve finds the outgoing interface of a static route
func (s *staticRoutes) resolve(sr *staticRoute) *types.Interface {
	if sr.cfg.Interface != "" {
		name := sr.cfg.Interface
		if len(name) >= types.MaxIfaceNameLen {
			name = name[:types.MaxIfaceNameLen-1]
		}
		return s.ifaces.FindByName(name)
	}
	return s.ifaces.FindByGateway(sr.gw)
}

// sync attaches every static route with its current interface. Routes whose
// interface is unchanged are left alone. A route without an interface stays
// attached but can not be exported, which takes it out of the kernel.
func (s *staticRoutes) sync() {
	for _, sr := range s.routes {
		ifc := s.resolve(sr)
		if sr.route != nil && sr.route.Attrs.Iface == ifc {
			continue
		}

		if ifc == nil {
			s.log.Warn("Static route has no usable interface",
				logger.Field{Key: "route", Value: sr.name},
				logger.Field{Key: "gateway", Value: sr.gw.String()})
		}

		r := &rib.Route{
			Net: sr.table.Get(sr.prefix),
			Attrs: &rib.Attributes{
				Proto:      StaticProto,
				Source:     rib.SourceStatic,
				Scope:      types.ScopeUniverse,
				Cast:       rib.CastUnicast,
				Dest:       rib.DestRouter,
				Gateway:    sr.gw,
				Iface:      ifc,
				Preference: rib.PreferenceStatic,
			},
		}
		sr.table.Attach(r)
		sr.route = r
	}
}

// withdraw detaches every static route
func (s *staticRoutes) withdraw() {
	for _, sr := range s.routes {
		if sr.route == nil {
			continue
		}
		sr.table.Detach(sr.route.Net, StaticProto)
		sr.route = nil
	}
}

// describe returns the configured routes with their state, for status output
func (s *staticRoutes) describe() []StaticRouteStatus {
	out := make([]StaticRouteStatus, 0, len(s.routes))
	for _, sr := range s.routes {
		st := StaticRouteStatus{
			Name:        sr.name,
			Destination: sr.prefix.String(),
			Gateway:     sr.gw.String(),
			Table:       sr.table.Name(),
			Comment:     strings.TrimSpace(sr.cfg.Comment),
		}
		if sr.route != nil && sr.route.Attrs.Iface != nil {
			st.Interface = sr.route.Attrs.Iface.Name
		}
		out = append(out, st)
	}
	return out
}
