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

import "errors"

var (
	// ErrListFailed means the store could not enumerate a category at all.
	// The scan pass it happened in was aborted.
	ErrListFailed = errors.New("listing failed")

	// ErrDuplicateRoute means another active route to the destination
	// already exists in the kernel table.
	ErrDuplicateRoute = errors.New("route to destination already exists")

	// ErrNotBound means no protocol owns the kernel table.
	ErrNotBound = errors.New("kernel table not bound")

	// ErrUnsupportedRoute means the route cannot be represented in the kernel
	// table (no gateway).
	ErrUnsupportedRoute = errors.New("route not representable in kernel table")

	ErrBadPrefixLen      = errors.New("invalid prefix length")
	ErrUnsupportedFamily = errors.New("unsupported address family")
)
