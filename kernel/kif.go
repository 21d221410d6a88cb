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
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/metrics"
	"github.com/we-are-mono/kernsync/system"
	"github.com/we-are-mono/kernsync/types"
)

// LoopbackName is the kernel loopback link. The daemon has its own
// loopback and never syncs the kernel's.
const LoopbackName = "lo"

// KifStats summarizes one interface scan pass
type KifStats struct {
	Pass         string        `json:"pass"`
	Links        int           `json:"links"`
	AddrsUpdated int           `json:"addrs_updated"`
	AddrsDeleted int           `json:"addrs_deleted"`
	Skipped      int           `json:"skipped"`
	Duration     time.Duration `json:"duration"`
}

// ScanInterfaces runs one interface scan pass: links first, then addresses
// in the active and the deleted view. The pass is bracketed by
// StartUpdate/EndUpdate on the interface layer. A listing failure aborts
// the rest of the pass without undoing what was already applied.
func (s *Syncer) ScanInterfaces() (KifStats, error) {
	stats := KifStats{Pass: uuid.NewString()}
	log := s.log.With(logger.Field{Key: "pass", Value: stats.Pass})
	start := time.Now()

	s.ifaces.StartUpdate()
	err := s.scanInterfaces(log, &stats)
	s.ifaces.EndUpdate()

	stats.Duration = time.Since(start)
	s.metrics.ScanDone(metrics.KindInterfaces, stats.Duration, err)

	if err != nil {
		log.Warn("Interface scan aborted", logger.Field{Key: "error", Value: err.Error()})
		return stats, err
	}

	log.Debug("Interface scan done",
		logger.Field{Key: "links", Value: stats.Links},
		logger.Field{Key: "addrs_updated", Value: stats.AddrsUpdated},
		logger.Field{Key: "addrs_deleted", Value: stats.AddrsDeleted},
		logger.Field{Key: "skipped", Value: stats.Skipped})
	return stats, nil
}

func (s *Syncer) scanInterfaces(log logger.Logger, stats *KifStats) error {
	ids, err := s.store.LinkList()
	if err != nil {
		return fmt.Errorf("%w: links: %w", ErrListFailed, err)
	}

	for _, id := range ids {
		info, err := s.store.LinkGet(id)
		if err != nil {
			log.Warn("Skipping link",
				logger.Field{Key: "link", Value: id},
				logger.Field{Key: "error", Value: err.Error()})
			s.skip(stats, "fetch")
			continue
		}
		if s.syncLink(log, info) {
			stats.Links++
		}
	}

	for _, view := range types.Views {
		ids, err := s.store.AddrList(view)
		if err != nil {
			return fmt.Errorf("%w: %s addresses: %w", ErrListFailed, view, err)
		}

		for _, id := range ids {
			info, err := s.store.AddrGet(id, view)
			if err != nil {
				log.Warn("Skipping address",
					logger.Field{Key: "address", Value: id},
					logger.Field{Key: "status", Value: view.String()},
					logger.Field{Key: "error", Value: err.Error()})
				s.skip(stats, "fetch")
				continue
			}

			if !s.syncAddr(log, info, view) {
				s.skip(stats, "address")
				continue
			}
			if view == types.StatusActive {
				stats.AddrsUpdated++
			} else {
				stats.AddrsDeleted++
			}
		}
	}

	return nil
}

// syncLink proposes a link to the interface layer. It reports false for the
// loopback link.
func (s *Syncer) syncLink(log logger.Logger, info system.LinkInfo) bool {
	if info.Name == LoopbackName {
		return false
	}

	name := info.Name
	// IFNAMSIZ counts the terminating NUL
	if len(name) > types.MaxIfaceNameLen-1 {
		name = name[:types.MaxIfaceNameLen-1]
	}

	index, err := s.names.IndexByName(info.Name)
	if err != nil {
		log.Warn("Cannot resolve interface index, using the enumerated one",
			logger.Field{Key: "interface", Value: info.Name},
			logger.Field{Key: "error", Value: err.Error()})
		index = info.Index
	}

	s.ifaces.Update(types.Interface{
		Name:  name,
		Index: index,
		MTU:   info.MTU,
		Flags: types.DefaultIfaceFlags,
	})
	return true
}

// syncAddr applies one address record. It reports false when the record
// was skipped.
func (s *Syncer) syncAddr(log logger.Logger, info system.AddrInfo, view types.Status) bool {
	if info.Family != unix.AF_INET || !info.Addr.Is4() {
		return false
	}

	ifc := s.ifaces.FindByIndex(info.LinkIndex)
	if ifc == nil {
		log.Debug("Address on unknown interface",
			logger.Field{Key: "address", Value: info.Addr.String()},
			logger.Field{Key: "link", Value: info.LinkIndex})
		return false
	}

	prefix, err := NetworkPrefix(info.Addr, info.PrefixLen)
	if err != nil {
		log.Warn("Skipping address",
			logger.Field{Key: "address", Value: info.Addr.String()},
			logger.Field{Key: "error", Value: err.Error()})
		return false
	}
	broadcast, _ := Broadcast(info.Addr, info.PrefixLen)

	addr := types.InterfaceAddress{
		IfIndex:   ifc.Index,
		IfName:    ifc.Name,
		IP:        info.Addr,
		PrefixLen: info.PrefixLen,
		Prefix:    prefix,
		Broadcast: broadcast,
		Scope:     ClassifyScope(info.Addr),
	}

	switch view {
	case types.StatusActive:
		return s.ifaces.UpdateAddr(addr)
	case types.StatusDeleted:
		s.ifaces.DeleteAddr(addr)
		return true
	default:
		log.Error("Unknown address status", logger.Field{Key: "status", Value: int(view)})
		return false
	}
}

func (s *Syncer) skip(stats *KifStats, reason string) {
	stats.Skipped++
	s.metrics.Skip(metrics.KindInterfaces, reason)
}
