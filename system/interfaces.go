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

// Package system provides the kernel-facing store of links, addresses and
// routes that the synchronization layer reads from and writes to.
package system

import (
	"github.com/vishvananda/netlink"
)

// NetlinkClient abstracts netlink operations for testability.
// This interface allows mocking of all netlink system calls.
type NetlinkClient interface {
	// Link operations
	LinkByName(name string) (netlink.Link, error)
	LinkByIndex(index int) (netlink.Link, error)
	LinkList() ([]netlink.Link, error)

	// Address operations. A nil link lists addresses of all links.
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)

	// Route operations
	RouteAdd(route *netlink.Route) error
	RouteDel(route *netlink.Route) error
	RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error)
}

// DefaultNetlinkClient implements NetlinkClient using real netlink calls.
type DefaultNetlinkClient struct{}

// NewDefaultNetlinkClient creates a new DefaultNetlinkClient.
func NewDefaultNetlinkClient() *DefaultNetlinkClient {
	return &DefaultNetlinkClient{}
}

func (c *DefaultNetlinkClient) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

func (c *DefaultNetlinkClient) LinkByIndex(index int) (netlink.Link, error) {
	return netlink.LinkByIndex(index)
}

func (c *DefaultNetlinkClient) LinkList() ([]netlink.Link, error) {
	return netlink.LinkList()
}

func (c *DefaultNetlinkClient) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

func (c *DefaultNetlinkClient) RouteAdd(route *netlink.Route) error {
	return netlink.RouteAdd(route)
}

func (c *DefaultNetlinkClient) RouteDel(route *netlink.Route) error {
	return netlink.RouteDel(route)
}

func (c *DefaultNetlinkClient) RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error) {
	return netlink.RouteListFiltered(family, filter, filterMask)
}
