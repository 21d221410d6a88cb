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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePort(t *testing.T) {
	tests := []struct {
		name      string
		port      int
		wantError bool
	}{
		{"valid port 80", 80, false},
		{"valid port 1", 1, false},
		{"valid port 65535", 65535, false},
		{"port too low", 0, true},
		{"port negative", -1, true},
		{"port too high", 65536, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePort(tt.port)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateIPv4(t *testing.T) {
	tests := []struct {
		name      string
		ip        string
		wantError bool
	}{
		{"valid", "192.168.1.1", false},
		{"unspecified", "0.0.0.0", false},
		{"ipv6", "2001:db8::1", true},
		{"empty", "", true},
		{"garbage", "not-an-ip", true},
		{"octet out of range", "10.0.0.256", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIPv4(tt.ip)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCIDR(t *testing.T) {
	tests := []struct {
		name      string
		cidr      string
		wantError bool
	}{
		{"network", "10.0.0.0/8", false},
		{"host bits set", "10.1.2.3/8", false},
		{"host route", "192.168.1.1/32", false},
		{"default keyword", "default", false},
		{"zero length", "0.0.0.0/0", false},
		{"ipv6", "2001:db8::/32", true},
		{"no length", "10.0.0.0", true},
		{"length too long", "10.0.0.0/33", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCIDR(tt.cidr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateListenAddress(t *testing.T) {
	tests := []struct {
		name      string
		addr      string
		wantError bool
	}{
		{"empty disables", "", false},
		{"port only", ":9108", false},
		{"ip and port", "127.0.0.1:9108", false},
		{"host name", "localhost:9108", false},
		{"no port", "127.0.0.1", true},
		{"bad port", "127.0.0.1:http", true},
		{"port out of range", ":70000", true},
		{"bad host", "bad_host!:9108", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateListenAddress(tt.addr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTableID(t *testing.T) {
	assert.NoError(t, ValidateTableID(0))
	assert.NoError(t, ValidateTableID(254))
	assert.NoError(t, ValidateTableID(4294967295))
	assert.Error(t, ValidateTableID(-1))
}

func TestValidateProtocolTag(t *testing.T) {
	assert.NoError(t, ValidateProtocolTag(0), "zero selects the default")
	assert.NoError(t, ValidateProtocolTag(3))
	assert.NoError(t, ValidateProtocolTag(12))
	assert.NoError(t, ValidateProtocolTag(255))
	assert.Error(t, ValidateProtocolTag(1))
	assert.Error(t, ValidateProtocolTag(2))
	assert.Error(t, ValidateProtocolTag(256))
	assert.Error(t, ValidateProtocolTag(-4))
}

func TestValidateInterval(t *testing.T) {
	assert.NoError(t, ValidateInterval(0))
	assert.NoError(t, ValidateInterval(100))
	assert.NoError(t, ValidateInterval(60000))
	assert.Error(t, ValidateInterval(-1))
	assert.Error(t, ValidateInterval(50))
}

func TestValidateInterfaceName(t *testing.T) {
	assert.NoError(t, ValidateInterfaceName(""))
	assert.NoError(t, ValidateInterfaceName("eth0"))
	assert.NoError(t, ValidateInterfaceName("abcdefghijklmno"))
	assert.Error(t, ValidateInterfaceName("abcdefghijklmnop"))
	assert.Error(t, ValidateInterfaceName("eth 0"))
	assert.Error(t, ValidateInterfaceName("eth/0"))
}

func TestValidateOneOf(t *testing.T) {
	allowed := []string{"json", "text"}
	assert.NoError(t, ValidateOneOf("", allowed))
	assert.NoError(t, ValidateOneOf("json", allowed))
	err := ValidateOneOf("yaml", allowed)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "json, text")
}
