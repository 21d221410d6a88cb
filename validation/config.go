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

package validation

import (
	"fmt"

	"github.com/we-are-mono/kernsync/types"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
	logOutputs = []string{"file", "journald"}
)

// ValidateConfig checks the whole configuration and reports every problem
// found.
func ValidateConfig(cfg *types.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	v := NewCollector()
	v.Check(ValidateKernelTables(cfg.Kernel))
	v.CheckMsg(ValidateInterval(cfg.InterfaceScanMS), "interface_scan_ms")

	for i := range cfg.StaticRoutes {
		v.Check(ValidateRoute(&cfg.StaticRoutes[i], i))
	}

	log := NewCollector().WithContext("logging")
	log.CheckMsg(ValidateOneOf(cfg.Logging.Level, logLevels), "level")
	log.CheckMsg(ValidateOneOf(cfg.Logging.Format, logFormats), "format")
	for _, out := range cfg.Logging.Outputs {
		log.CheckMsg(ValidateOneOf(out, logOutputs), "outputs")
	}
	v.Check(log.Error())

	v.CheckMsg(ValidateListenAddress(cfg.Metrics.Listen), "metrics")
	if cfg.History.Enabled && cfg.History.Path == "" {
		v.Check(fmt.Errorf("history: path cannot be empty when enabled"))
	}

	return v.Error()
}

// ValidateKernelTables checks the kernel protocol instances. Two instances
// must not sync the same kernel table, and names must be unique.
func ValidateKernelTables(kernels []types.KernelConfig) error {
	v := NewCollector()
	tables := make(map[int]string)
	names := make(map[string]bool)

	for i, k := range kernels {
		name := k.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		kv := NewCollector().WithContext(fmt.Sprintf("kernel %s", name))

		if k.Name == "" {
			kv.Check(fmt.Errorf("name cannot be empty"))
		} else if names[k.Name] {
			kv.Check(fmt.Errorf("duplicate name"))
		}
		names[k.Name] = true

		kv.Check(ValidateTableID(k.Table))
		kv.Check(ValidateProtocolTag(k.Protocol))
		kv.CheckMsg(ValidateInterval(k.ScanIntervalMS), "scan_interval_ms")

		id := k.Table
		if id == 0 {
			id = 254
		}
		if other, ok := tables[id]; ok {
			kv.Check(fmt.Errorf("table %d already synced by %s", id, other))
		} else {
			tables[id] = name
		}

		v.Check(kv.Error())
	}

	return v.Error()
}

// ValidateRoute checks one static route
func ValidateRoute(r *types.Route, index int) error {
	name := r.Name
	if name == "" {
		name = fmt.Sprintf("#%d", index)
	}
	v := NewCollector().WithContext(fmt.Sprintf("route %s", name))

	v.CheckMsg(ValidateCIDR(r.Destination), "invalid destination")
	if r.Gateway == "" {
		v.Check(fmt.Errorf("gateway cannot be empty"))
	} else {
		v.CheckMsg(ValidateIPv4(r.Gateway), "invalid gateway")
	}
	v.Check(ValidateInterfaceName(r.Interface))
	v.Check(ValidateTableID(r.Table))

	return v.Error()
}
