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
	"sync"

	"github.com/vishvananda/netlink"
)

// MockNetlinkClient is a mock implementation of NetlinkClient for testing.
type MockNetlinkClient struct {
	mu sync.Mutex

	// State
	Links     map[string]netlink.Link
	Addresses map[string][]netlink.Addr
	Routes    []netlink.Route

	// Call counters for verification
	LinkByNameCalls        int
	LinkByIndexCalls       int
	LinkListCalls          int
	AddrListCalls          int
	RouteAddCalls          int
	RouteDelCalls          int
	RouteListFilteredCalls int

	// Error injection for testing error paths
	LinkByNameError        error
	LinkByIndexError       error
	LinkListError          error
	AddrListError          error
	RouteAddError          error
	RouteDelError          error
	RouteListFilteredError error
}

// NewMockNetlinkClient creates a new MockNetlinkClient.
func NewMockNetlinkClient() *MockNetlinkClient {
	return &MockNetlinkClient{
		Links:     make(map[string]netlink.Link),
		Addresses: make(map[string][]netlink.Addr),
		Routes:    make([]netlink.Route, 0),
	}
}

// AddLink registers a dummy link with the given name, index and MTU.
func (m *MockNetlinkClient) AddLink(name string, index, mtu int) netlink.Link {
	m.mu.Lock()
	defer m.mu.Unlock()

	link := &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: name, Index: index, MTU: mtu}}
	m.Links[name] = link
	return link
}

// AddAddr attaches an address in CIDR notation to a registered link.
func (m *MockNetlinkClient) AddAddr(name, cidr string) error {
	addr, err := netlink.ParseAddr(cidr)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.Links[name]
	if !ok {
		return fmt.Errorf("Link not found")
	}
	addr.LinkIndex = link.Attrs().Index
	m.Addresses[name] = append(m.Addresses[name], *addr)
	return nil
}

// RemoveAddr detaches an address in CIDR notation from a link.
func (m *MockNetlinkClient) RemoveAddr(name, cidr string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	addrs := m.Addresses[name]
	for i, a := range addrs {
		if a.IPNet.String() == cidr {
			m.Addresses[name] = append(addrs[:i], addrs[i+1:]...)
			return
		}
	}
}

func (m *MockNetlinkClient) LinkByName(name string) (netlink.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkByNameCalls++

	if m.LinkByNameError != nil {
		return nil, m.LinkByNameError
	}

	link, ok := m.Links[name]
	if !ok {
		return nil, fmt.Errorf("Link not found")
	}
	return link, nil
}

func (m *MockNetlinkClient) LinkByIndex(index int) (netlink.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkByIndexCalls++

	if m.LinkByIndexError != nil {
		return nil, m.LinkByIndexError
	}

	for _, link := range m.Links {
		if link.Attrs().Index == index {
			return link, nil
		}
	}
	return nil, fmt.Errorf("Link not found")
}

func (m *MockNetlinkClient) LinkList() ([]netlink.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkListCalls++

	if m.LinkListError != nil {
		return nil, m.LinkListError
	}

	links := make([]netlink.Link, 0, len(m.Links))
	for _, link := range m.Links {
		links = append(links, link)
	}
	return links, nil
}

func (m *MockNetlinkClient) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddrListCalls++

	if m.AddrListError != nil {
		return nil, m.AddrListError
	}

	if link != nil {
		addrs, ok := m.Addresses[link.Attrs().Name]
		if !ok {
			return []netlink.Addr{}, nil
		}
		return addrs, nil
	}

	var all []netlink.Addr
	for name, addrs := range m.Addresses {
		index := 0
		if l, ok := m.Links[name]; ok {
			index = l.Attrs().Index
		}
		for _, a := range addrs {
			a.LinkIndex = index
			all = append(all, a)
		}
	}
	return all, nil
}

func (m *MockNetlinkClient) RouteAdd(route *netlink.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RouteAddCalls++

	if m.RouteAddError != nil {
		return m.RouteAddError
	}

	for _, r := range m.Routes {
		if routesMatch(r, *route) && r.Protocol == route.Protocol {
			return fmt.Errorf("file exists")
		}
	}

	m.Routes = append(m.Routes, *route)
	return nil
}

func (m *MockNetlinkClient) RouteDel(route *netlink.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RouteDelCalls++

	if m.RouteDelError != nil {
		return m.RouteDelError
	}

	for i, r := range m.Routes {
		if routesMatch(r, *route) {
			m.Routes = append(m.Routes[:i], m.Routes[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no such process")
}

func (m *MockNetlinkClient) RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RouteListFilteredCalls++

	if m.RouteListFilteredError != nil {
		return nil, m.RouteListFilteredError
	}

	routes := make([]netlink.Route, 0, len(m.Routes))
	for _, r := range m.Routes {
		if filter != nil && filterMask&netlink.RT_FILTER_TABLE != 0 &&
			normalizeTable(r.Table) != normalizeTable(filter.Table) {
			continue
		}
		routes = append(routes, r)
	}
	return routes, nil
}
