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

package rib

// RouteStatus is the printable form of a route
type RouteStatus struct {
	Proto      string `json:"proto"`
	Source     string `json:"source"`
	Dest       string `json:"dest"`
	Gateway    string `json:"gateway,omitempty"`
	Iface      string `json:"iface,omitempty"`
	Preference int    `json:"preference"`
	Origin     string `json:"origin,omitempty"` // kernel classification
	KernelTag  int    `json:"kernel_tag,omitempty"`
	Best       bool   `json:"best"`
}

// NetworkStatus is the printable form of a network
type NetworkStatus struct {
	Prefix    string        `json:"prefix"`
	SyncError bool          `json:"sync_error"`
	Routes    []RouteStatus `json:"routes"`
}

// Status returns a printable view of a route
func (r *Route) Status() RouteStatus {
	st := RouteStatus{
		Proto:      r.Attrs.Proto,
		Source:     r.Attrs.Source.String(),
		Dest:       r.Attrs.Dest.String(),
		Preference: r.Attrs.Preference,
	}
	if r.Attrs.Gateway.IsValid() {
		st.Gateway = r.Attrs.Gateway.String()
	}
	if r.Attrs.Iface != nil {
		st.Iface = r.Attrs.Iface.Name
	}
	if r.Attrs.Source == SourceInherit {
		st.Origin = r.Kernel.Src.String()
		st.KernelTag = r.Kernel.Proto
	}
	return st
}

// Snapshot returns a printable view of the whole table
func (t *Table) Snapshot() []NetworkStatus {
	nets := t.Networks()

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]NetworkStatus, 0, len(nets))
	for _, n := range nets {
		ns := NetworkStatus{
			Prefix:    n.Prefix.String(),
			SyncError: n.SyncError(),
			Routes:    make([]RouteStatus, 0, len(n.routes)),
		}
		for _, r := range n.routes {
			rs := r.Status()
			rs.Best = r == n.best
			ns.Routes = append(ns.Routes, rs)
		}
		out = append(out, ns)
	}
	return out
}
