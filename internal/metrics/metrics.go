// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsTotal counts ERF records by outcome
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erfreader_records_total",
			Help: "Total number of ERF records read, by outcome",
		},
		[]string{"outcome"},
	)

	// SkippedTotal counts skipped records by reason
	SkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erfreader_skipped_total",
			Help: "Total number of skipped records, by reason",
		},
		[]string{"reason"},
	)

	// PayloadBytesTotal counts transport payload bytes delivered to sinks
	PayloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "erfreader_payload_bytes_total",
			Help: "Total number of transport payload bytes delivered",
		},
	)

	// PacketsByTransport counts delivered packets by transport protocol
	PacketsByTransport = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erfreader_packets_total",
			Help: "Total number of decoded packets delivered, by transport",
		},
		[]string{"transport"},
	)

	// SinkErrorsTotal counts sink failures by sink type
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erfreader_sink_errors_total",
			Help: "Total number of sink errors",
		},
		[]string{"sink"},
	)

	// RunDurationSeconds measures whole-file decode runs
	RunDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "erfreader_run_duration_seconds",
			Help:    "Duration of a decode run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
		},
	)
)
