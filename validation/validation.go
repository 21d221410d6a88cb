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

// Package validation provides validation helpers for the kernsync configuration.
package validation

import (
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/we-are-mono/kernsync/types"
)

var domainRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// ValidatePort validates that a port number is in the valid range [1, 65535].
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of valid range [1, 65535]", port)
	}
	return nil
}

// ValidateIPv4 validates that a string is a valid IPv4 address.
func ValidateIPv4(ip string) error {
	if ip == "" {
		return fmt.Errorf("IP address cannot be empty")
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return fmt.Errorf("invalid IP address: %s", ip)
	}
	if !addr.Is4() {
		return fmt.Errorf("not an IPv4 address: %s", ip)
	}

	return nil
}

// ValidateCIDR validates that a string is IPv4 CIDR notation.
func ValidateCIDR(cidr string) error {
	if cidr == "" {
		return fmt.Errorf("CIDR cannot be empty")
	}

	// Special case: "default" is allowed for default routes
	if cidr == "default" {
		return nil
	}

	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR notation %s: %w", cidr, err)
	}
	if !prefix.Addr().Is4() {
		return fmt.Errorf("not an IPv4 prefix: %s", cidr)
	}

	return nil
}

// ValidateDomain validates a DNS host name.
func ValidateDomain(domain string) error {
	if domain == "" {
		return nil // Empty domain is often optional
	}

	if !domainRegex.MatchString(domain) {
		return fmt.Errorf("invalid domain name: %s", domain)
	}

	// Check total length (RFC 1035: max 253 characters)
	if len(domain) > 253 {
		return fmt.Errorf("domain name too long: %s (max 253 characters)", domain)
	}

	return nil
}

// ValidateListenAddress validates a "host:port" listen address. The host may
// be empty, an IP address or a host name.
func ValidateListenAddress(addr string) error {
	if addr == "" {
		return nil // Empty address disables the listener
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %s (expected 'host:port'): %w", addr, err)
	}

	if host != "" && net.ParseIP(host) == nil {
		if err := ValidateDomain(host); err != nil {
			return fmt.Errorf("invalid listen host in %s: %w", addr, err)
		}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid listen port in %s: %w", addr, err)
	}

	if err := ValidatePort(port); err != nil {
		return fmt.Errorf("invalid listen port in %s: %w", addr, err)
	}

	return nil
}

// ValidateTableID validates a Linux routing table ID.
// Valid range is [0, 4294967295] (uint32 max), 0 meaning the main table.
func ValidateTableID(tableID int) error {
	if tableID < 0 || tableID > 4294967295 {
		return fmt.Errorf("table ID %d out of valid range [0, 4294967295]", tableID)
	}
	return nil
}

// ValidateProtocolTag validates the origin tag put on exported routes.
// 0 selects the default; 1 and 2 are reserved for the kernel itself.
func ValidateProtocolTag(tag int) error {
	if tag == 0 {
		return nil
	}
	if tag < 3 || tag > 255 {
		return fmt.Errorf("protocol tag %d out of valid range [3, 255]", tag)
	}
	return nil
}

// ValidateInterval validates a scan period in milliseconds. 0 selects the default.
func ValidateInterval(ms int) error {
	if ms < 0 {
		return fmt.Errorf("interval %dms cannot be negative", ms)
	}
	if ms > 0 && ms < 100 {
		return fmt.Errorf("interval %dms too short (min 100ms)", ms)
	}
	return nil
}

// ValidateInterfaceName validates a Linux interface name.
func ValidateInterfaceName(name string) error {
	if name == "" {
		return nil // Empty interface is often optional
	}
	if len(name) >= types.MaxIfaceNameLen {
		return fmt.Errorf("interface name %s too long (max %d characters)", name, types.MaxIfaceNameLen-1)
	}
	if strings.ContainsAny(name, "/ \t\n") {
		return fmt.Errorf("invalid interface name %q", name)
	}
	return nil
}

// ValidateOneOf validates that value is one of the allowed strings.
func ValidateOneOf(value string, allowed []string) error {
	if value == "" {
		return nil
	}

	for _, a := range allowed {
		if value == a {
			return nil
		}
	}

	return fmt.Errorf("invalid value %s (must be one of: %s)", value, strings.Join(allowed, ", "))
}
