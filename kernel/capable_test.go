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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/we-are-mono/kernsync/rib"
	"github.com/we-are-mono/kernsync/types"
)

func TestCapable(t *testing.T) {
	eth0 := &types.Interface{Name: "eth0", Index: 2}

	tests := []struct {
		name  string
		cast  rib.Cast
		dest  rib.Dest
		iface *types.Interface
		want  bool
	}{
		{"router without iface", rib.CastUnicast, rib.DestRouter, nil, false},
		{"router with iface", rib.CastUnicast, rib.DestRouter, eth0, true},
		{"device without iface", rib.CastUnicast, rib.DestDevice, nil, false},
		{"device with iface", rib.CastUnicast, rib.DestDevice, eth0, true},
		{"blackhole", rib.CastUnicast, rib.DestBlackhole, nil, true},
		{"blackhole with iface", rib.CastUnicast, rib.DestBlackhole, eth0, true},
		{"unreachable", rib.CastUnicast, rib.DestUnreachable, nil, true},
		{"prohibit", rib.CastUnicast, rib.DestProhibit, nil, true},
		{"multipath", rib.CastUnicast, rib.DestMultipath, nil, true},
		{"no forwarding mode", rib.CastUnicast, rib.DestNone, eth0, false},
		{"multicast router", rib.CastMulticast, rib.DestRouter, eth0, false},
		{"multicast blackhole", rib.CastMulticast, rib.DestBlackhole, nil, false},
		{"broadcast", rib.CastBroadcast, rib.DestDevice, eth0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &rib.Route{Attrs: &rib.Attributes{Cast: tt.cast, Dest: tt.dest, Iface: tt.iface}}
			assert.Equal(t, tt.want, Capable(r))
		})
	}

	assert.False(t, Capable(nil))
	assert.False(t, Capable(&rib.Route{}))
}
