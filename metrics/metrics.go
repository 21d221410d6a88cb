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

// Package metrics bundles the Prometheus metrics of the sync layer. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scan kinds
const (
	KindInterfaces = "kif"
	KindRoutes     = "krt"
)

// Collector holds the kernsync metrics
type Collector struct {
	gatherer prometheus.Gatherer

	Scans         *prometheus.CounterVec
	ScanDurations *prometheus.HistogramVec
	Skipped       *prometheus.CounterVec
	Imported      *prometheus.CounterVec
	Exports       *prometheus.CounterVec

	Interfaces prometheus.Gauge
	Addresses  prometheus.Gauge
	Networks   *prometheus.GaugeVec
	OutOfSync  *prometheus.GaugeVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	scans, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kernsync_scans_total",
		Help: "Scan passes, labeled by kind (kif, krt) and result.",
	}, []string{"kind", "result"}), "kernsync_scans_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kernsync_scan_duration_seconds",
		Help:    "Scan pass duration in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"kind"}), "kernsync_scan_duration_seconds")
	if err != nil {
		return nil, err
	}

	skipped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kernsync_scan_skipped_total",
		Help: "Records skipped during scans, labeled by kind and reason.",
	}, []string{"kind", "reason"}), "kernsync_scan_skipped_total")
	if err != nil {
		return nil, err
	}

	imported, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kernsync_routes_imported_total",
		Help: "Kernel routes handed to the routing table, labeled by kernel table, status and origin.",
	}, []string{"table", "status", "origin"}), "kernsync_routes_imported_total")
	if err != nil {
		return nil, err
	}

	exports, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kernsync_route_exports_total",
		Help: "Route export operations, labeled by kernel table, operation and result.",
	}, []string{"table", "op", "result"}), "kernsync_route_exports_total")
	if err != nil {
		return nil, err
	}

	ifaces, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kernsync_interfaces",
		Help: "Interfaces known to the interface layer.",
	}), "kernsync_interfaces")
	if err != nil {
		return nil, err
	}

	addrs, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kernsync_addresses",
		Help: "Interface addresses known to the interface layer.",
	}), "kernsync_addresses")
	if err != nil {
		return nil, err
	}

	networks, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kernsync_networks",
		Help: "Networks in each routing table.",
	}, []string{"table"}), "kernsync_networks")
	if err != nil {
		return nil, err
	}

	outOfSync, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kernsync_networks_out_of_sync",
		Help: "Networks whose last export failed.",
	}, []string{"table"}), "kernsync_networks_out_of_sync")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		Scans:         scans,
		ScanDurations: durations,
		Skipped:       skipped,
		Imported:      imported,
		Exports:       exports,
		Interfaces:    ifaces,
		Addresses:     addrs,
		Networks:      networks,
		OutOfSync:     outOfSync,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ScanDone records one scan pass
func (c *Collector) ScanDone(kind string, took time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Scans.WithLabelValues(kind, result).Inc()
	c.ScanDurations.WithLabelValues(kind).Observe(took.Seconds())
}

// Skip records a record skipped during a scan
func (c *Collector) Skip(kind, reason string) {
	if c == nil {
		return
	}
	c.Skipped.WithLabelValues(kind, reason).Inc()
}

// RouteImported records a kernel route handed to the routing table
func (c *Collector) RouteImported(table int, status, origin string) {
	if c == nil {
		return
	}
	c.Imported.WithLabelValues(fmt.Sprint(table), status, origin).Inc()
}

// Export records one export operation (op is "install" or "remove")
func (c *Collector) Export(table int, op string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Exports.WithLabelValues(fmt.Sprint(table), op, result).Inc()
}

// SetInterfaceCounts updates the interface layer gauges
func (c *Collector) SetInterfaceCounts(ifaces, addrs int) {
	if c == nil {
		return
	}
	c.Interfaces.Set(float64(ifaces))
	c.Addresses.Set(float64(addrs))
}

// SetTableCounts updates the per routing table gauges
func (c *Collector) SetTableCounts(table string, networks, outOfSync int) {
	if c == nil {
		return
	}
	c.Networks.WithLabelValues(table).Set(float64(networks))
	c.OutOfSync.WithLabelValues(table).Set(float64(outOfSync))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
