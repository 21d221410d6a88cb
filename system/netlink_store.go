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

package system

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/vishvananda/netlink"

	"github.com/we-are-mono/kernsync/types"
)

type addrKey struct {
	linkIndex int
	prefix    netip.Prefix
}

type routeKey struct {
	table    int
	dest     netip.Prefix
	gateway  netip.Addr
	protocol int
}

// NetlinkStore implements Store and IndexResolver on top of a NetlinkClient.
type NetlinkStore struct {
	netlink NetlinkClient

	mu     sync.Mutex
	ids    idAllocator
	addrs  *recordView[addrKey, AddrInfo]
	routes map[int]*recordView[routeKey, RouteInfo] // kernel table -> view
}

// NewNetlinkStore creates a store backed by the given client.
func NewNetlinkStore(nl NetlinkClient) *NetlinkStore {
	s := &NetlinkStore{
		netlink: nl,
		routes:  make(map[int]*recordView[routeKey, RouteInfo]),
	}
	s.addrs = newRecordView[addrKey, AddrInfo](&s.ids)
	return s
}

// NewDefaultNetlinkStore creates a store talking to the running kernel.
func NewDefaultNetlinkStore() *NetlinkStore {
	return NewNetlinkStore(NewDefaultNetlinkClient())
}

// LinkList returns the indexes of all links
func (s *NetlinkStore) LinkList() ([]int, error) {
	links, err := s.netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	ids := make([]int, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.Attrs().Index)
	}
	return ids, nil
}

// LinkGet fetches one link by index
func (s *NetlinkStore) LinkGet(id int) (LinkInfo, error) {
	link, err := s.netlink.LinkByIndex(id)
	if err != nil {
		return LinkInfo{}, fmt.Errorf("link %d: %w", id, err)
	}

	attrs := link.Attrs()
	return LinkInfo{
		Index: attrs.Index,
		Name:  attrs.Name,
		MTU:   attrs.MTU,
	}, nil
}

// IndexByName resolves an interface name to its index
func (s *NetlinkStore) IndexByName(name string) (int, error) {
	link, err := s.netlink.LinkByName(name)
	if err != nil {
		return 0, fmt.Errorf("interface %s not found: %w", name, err)
	}
	return link.Attrs().Index, nil
}

// AddrList lists address identifiers. Listing the active view re-reads the
// kernel; listing the deleted view returns what vanished since the last time.
func (s *NetlinkStore) AddrList(view types.Status) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch view {
	case types.StatusActive:
	case types.StatusDeleted:
		return s.addrs.takeDeleted(), nil
	default:
		return nil, fmt.Errorf("unknown address view %d", view)
	}

	addrs, err := s.netlink.AddrList(nil, netlink.FAMILY_ALL)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}

	current := make(map[addrKey]AddrInfo, len(addrs))
	for _, a := range addrs {
		info, ok := addrInfoFromNetlink(a)
		if !ok {
			continue
		}
		key := addrKey{
			linkIndex: info.LinkIndex,
			prefix:    netip.PrefixFrom(info.Addr, info.PrefixLen),
		}
		current[key] = info
	}

	return s.addrs.refresh(current), nil
}

// AddrGet fetches one address from the given view
func (s *NetlinkStore) AddrGet(id int, view types.Status) (AddrInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.addrs.get(id, view)
	if !ok {
		return AddrInfo{}, fmt.Errorf("address %d (%s): %w", id, view, ErrNotFound)
	}
	return info, nil
}

// RouteList lists route identifiers of one kernel table. Only IPv4 unicast
// routes via a gateway are reported.
func (s *NetlinkStore) RouteList(table int, view types.Status) ([]int, error) {
	if table == 0 {
		table = MainTable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rv := s.routeView(table)
	switch view {
	case types.StatusActive:
	case types.StatusDeleted:
		return rv.takeDeleted(), nil
	default:
		return nil, fmt.Errorf("unknown route view %d", view)
	}

	filter := &netlink.Route{Table: table}
	routes, err := s.netlink.RouteListFiltered(netlink.FAMILY_V4, filter, netlink.RT_FILTER_TABLE)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes in table %d: %w", table, err)
	}

	current := make(map[routeKey]RouteInfo, len(routes))
	for _, r := range routes {
		info, ok := routeInfoFromNetlink(r, table)
		if !ok {
			continue
		}
		current[keyForRoute(info)] = info
	}

	return rv.refresh(current), nil
}

// RouteGet fetches one route from the given view
func (s *NetlinkStore) RouteGet(id int, view types.Status) (RouteInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rv := range s.routes {
		if info, ok := rv.get(id, view); ok {
			return info, nil
		}
	}
	return RouteInfo{}, fmt.Errorf("route %d (%s): %w", id, view, ErrNotFound)
}

// RouteCreate installs a route and returns its identifier
func (s *NetlinkStore) RouteCreate(table int, info RouteInfo) (int, error) {
	if table == 0 {
		table = MainTable
	}
	info.Table = table

	nlRoute, err := routeToNetlink(info)
	if err != nil {
		return 0, err
	}

	if err := s.netlink.RouteAdd(nlRoute); err != nil {
		return 0, fmt.Errorf("failed to add route %s via %s: %w", info.Dest, info.Gateway, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routeView(table).add(keyForRoute(info), info), nil
}

// RouteDelete removes an active route by identifier
func (s *NetlinkStore) RouteDelete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rv := range s.routes {
		info, ok := rv.get(id, types.StatusActive)
		if !ok {
			continue
		}

		nlRoute, err := routeToNetlink(info)
		if err != nil {
			return err
		}
		if err := s.netlink.RouteDel(nlRoute); err != nil {
			return fmt.Errorf("failed to delete route %s via %s: %w", info.Dest, info.Gateway, err)
		}
		rv.remove(id)
		return nil
	}

	return fmt.Errorf("route %d: %w", id, ErrNotFound)
}

func (s *NetlinkStore) routeView(table int) *recordView[routeKey, RouteInfo] {
	rv, ok := s.routes[table]
	if !ok {
		rv = newRecordView[routeKey, RouteInfo](&s.ids)
		s.routes[table] = rv
	}
	return rv
}

func keyForRoute(info RouteInfo) routeKey {
	return routeKey{
		table:    info.Table,
		dest:     info.Dest,
		gateway:  info.Gateway,
		protocol: info.Protocol,
	}
}

func addrInfoFromNetlink(a netlink.Addr) (AddrInfo, bool) {
	if a.IPNet == nil {
		return AddrInfo{}, false
	}
	ip, ok := netip.AddrFromSlice(a.IP)
	if !ok {
		return AddrInfo{}, false
	}
	ip = ip.Unmap()

	ones, _ := a.Mask.Size()
	family := netlink.FAMILY_V6
	if ip.Is4() {
		family = netlink.FAMILY_V4
	}

	return AddrInfo{
		LinkIndex: a.LinkIndex,
		Addr:      ip,
		PrefixLen: ones,
		Family:    family,
	}, true
}
