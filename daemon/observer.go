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
	"sync"
	"time"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/metrics"
	"github.com/we-are-mono/kernsync/system"
)

// selfChangeWindow is how long after our own kernel changes events are
// attributed to us
const selfChangeWindow = time.Second

// ScanRequester receives early scan requests
type ScanRequester interface {
	RequestScan(kind string)
}

// Subscriber opens the netlink event streams. The default uses the
// netlink package; tests replace it.
type Subscriber interface {
	LinkSubscribe(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error
	AddrSubscribe(ch chan<- netlink.AddrUpdate, done <-chan struct{}) error
	RouteSubscribe(ch chan<- netlink.RouteUpdate, done <-chan struct{}) error
}

type netlinkSubscriber struct{}

func (netlinkSubscriber) LinkSubscribe(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error {
	return netlink.LinkSubscribe(ch, done)
}

func (netlinkSubscriber) AddrSubscribe(ch chan<- netlink.AddrUpdate, done <-chan struct{}) error {
	return netlink.AddrSubscribe(ch, done)
}

func (netlinkSubscriber) RouteSubscribe(ch chan<- netlink.RouteUpdate, done <-chan struct{}) error {
	return netlink.RouteSubscribe(ch, done)
}

// NetworkObserver watches netlink for link, address and route changes made
// by other processes and asks for an early scan when it sees one. Scans
// still run on their period without it.
type NetworkObserver struct {
	scans       ScanRequester
	subscriber  Subscriber
	tables      func(table int) bool
	log         logger.Logger
	linkCh      chan netlink.LinkUpdate
	addrCh      chan netlink.AddrUpdate
	routeCh     chan netlink.RouteUpdate
	lastChange  time.Time
	changeMutex sync.RWMutex
}

// NewNetworkObserver creates an observer. synced reports whether a kernel
// table is synced; route events of other tables are ignored.
func NewNetworkObserver(scans ScanRequester, synced func(table int) bool, log logger.Logger) *NetworkObserver {
	if log == nil {
		log = logger.Named("observer")
	}
	return &NetworkObserver{
		scans:      scans,
		subscriber: netlinkSubscriber{},
		tables:     synced,
		log:        log,
		linkCh:     make(chan netlink.LinkUpdate),
		addrCh:     make(chan netlink.AddrUpdate),
		routeCh:    make(chan netlink.RouteUpdate),
		lastChange: time.Now().Add(-2 * selfChangeWindow), // Start with no recent changes
	}
}

// SetSubscriber replaces the netlink event source
func (o *NetworkObserver) SetSubscriber(sub Subscriber) {
	o.subscriber = sub
}

// Run starts the network observer and blocks until done is closed
func (o *NetworkObserver) Run(done <-chan struct{}) error {
	monitorDone := make(chan struct{})

	if err := o.subscriber.LinkSubscribe(o.linkCh, monitorDone); err != nil {
		o.log.Error("Failed to subscribe to link events",
			logger.Field{Key: "error", Value: err.Error()})
		close(monitorDone)
		return err
	}

	if err := o.subscriber.AddrSubscribe(o.addrCh, monitorDone); err != nil {
		o.log.Error("Failed to subscribe to address events",
			logger.Field{Key: "error", Value: err.Error()})
		close(monitorDone)
		return err
	}

	if err := o.subscriber.RouteSubscribe(o.routeCh, monitorDone); err != nil {
		o.log.Error("Failed to subscribe to route events",
			logger.Field{Key: "error", Value: err.Error()})
		close(monitorDone)
		return err
	}

	o.log.Info("Network observer started")

	for {
		select {
		case update := <-o.linkCh:
			o.handleLinkUpdate(update)
		case update := <-o.addrCh:
			o.handleAddrUpdate(update)
		case update := <-o.routeCh:
			o.handleRouteUpdate(update)
		case <-done:
			close(monitorDone)
			o.log.Info("Network observer stopped")
			return nil
		}
	}
}

// handleLinkUpdate processes link (interface) change events
func (o *NetworkObserver) handleLinkUpdate(update netlink.LinkUpdate) {
	attrs := update.Link.Attrs()
	flags := update.IfInfomsg.Flags

	action := "changed"
	if update.Header.Type == unix.RTM_DELLINK {
		action = "deleted"
	}

	o.log.Debug("Link change detected",
		logger.Field{Key: "action", Value: action},
		logger.Field{Key: "interface", Value: attrs.Name},
		logger.Field{Key: "index", Value: attrs.Index},
		logger.Field{Key: "up", Value: flags&unix.IFF_UP != 0},
		logger.Field{Key: "mtu", Value: attrs.MTU})

	o.scans.RequestScan(metrics.KindInterfaces)
}

// handleAddrUpdate processes IP address change events
func (o *NetworkObserver) handleAddrUpdate(update netlink.AddrUpdate) {
	action := "deleted"
	if update.NewAddr {
		action = "added"
	}

	o.log.Debug("Address change detected",
		logger.Field{Key: "action", Value: action},
		logger.Field{Key: "index", Value: update.LinkIndex},
		logger.Field{Key: "address", Value: update.LinkAddress.String()})

	o.scans.RequestScan(metrics.KindInterfaces)
}

// handleRouteUpdate processes routing table change events
func (o *NetworkObserver) handleRouteUpdate(update netlink.RouteUpdate) {
	// Ignore events from our own exports
	if o.isRecentChange() {
		return
	}

	route := update.Route
	table := route.Table
	if table == 0 {
		table = system.MainTable
	}
	if o.tables != nil && !o.tables(table) {
		return
	}

	action := "modified"
	switch update.Type {
	case unix.RTM_NEWROUTE:
		action = "added"
	case unix.RTM_DELROUTE:
		action = "deleted"
	}

	o.log.Debug("Route change detected",
		logger.Field{Key: "action", Value: action},
		logger.Field{Key: "dst", Value: routeDst(route)},
		logger.Field{Key: "via", Value: route.Gw.String()},
		logger.Field{Key: "protocol", Value: int(route.Protocol)},
		logger.Field{Key: "table", Value: table})

	o.scans.RequestScan(metrics.KindRoutes)
}

// MarkChange records that the daemon is about to change a kernel table, so
// the resulting events are not taken for external modifications.
func (o *NetworkObserver) MarkChange() {
	o.changeMutex.Lock()
	defer o.changeMutex.Unlock()
	o.lastChange = time.Now()
}

// isRecentChange checks if the daemon changed a kernel table within the
// last second
func (o *NetworkObserver) isRecentChange() bool {
	o.changeMutex.RLock()
	defer o.changeMutex.RUnlock()
	return time.Since(o.lastChange) < selfChangeWindow
}

func routeDst(r netlink.Route) string {
	if r.Dst == nil {
		return "default"
	}
	return r.Dst.String()
}
