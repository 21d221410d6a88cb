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

import "github.com/we-are-mono/kernsync/rib"

// Capable reports whether a route can be represented in a kernel table.
func Capable(r *rib.Route) bool {
	if r == nil || r.Attrs == nil {
		return false
	}
	a := r.Attrs

	if a.Cast != rib.CastUnicast {
		return false
	}

	switch a.Dest {
	case rib.DestRouter, rib.DestDevice:
		return a.Iface != nil
	case rib.DestBlackhole, rib.DestUnreachable, rib.DestProhibit, rib.DestMultipath:
		return true
	default:
		return false
	}
}
