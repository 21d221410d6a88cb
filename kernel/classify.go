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
	"golang.org/x/sys/unix"

	"github.com/we-are-mono/kernsync/types"
)

// DefaultProtocolTag is the origin tag put on exported routes (RTPROT_BIRD).
const DefaultProtocolTag = unix.RTPROT_BIRD

// Classify maps the origin tag of a kernel route to a route source and
// reports whether the route may be imported. ownTag is the tag this daemon
// exports with; its own routes are only imported while active so that the
// daemon does not react to its own withdrawals.
func Classify(tag int, view types.Status, ownTag int) (types.RouteSource, bool) {
	switch tag {
	case unix.RTPROT_UNSPEC:
		return types.SourceUnspec, false
	case unix.RTPROT_KERNEL:
		// Device routes the kernel derived from addresses
		return types.SourceKernel, false
	case ownTag:
		return types.SourceDaemon, view == types.StatusActive
	default:
		return types.SourceAlien, true
	}
}
