// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

// Package metrics counts the work done by the tight command.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tight"

// Metrics holds the collectors for one run of the command.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	bytes      *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Number of compressions and decompressions, by outcome.",
			},
			[]string{"op", "status"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_total",
				Help:      "Bytes read and written by successful operations.",
			},
			[]string{"op", "direction"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Time spent in each operation.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60},
			},
			[]string{"op"},
		),
	}
	m.registry.MustRegister(m.operations, m.bytes, m.durations)
	return m
}

// Observe records one operation.
func (m *Metrics) Observe(op, status string, in, out int64, d time.Duration) {
	m.operations.WithLabelValues(op, status).Inc()
	m.bytes.WithLabelValues(op, "in").Add(float64(in))
	m.bytes.WithLabelValues(op, "out").Add(float64(out))
	m.durations.WithLabelValues(op).Observe(d.Seconds())
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteFile writes the metrics in the Prometheus text format,
// for a node exporter's textfile collector.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
