// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for FramesDroppedTotal.
const (
	ReasonNotForEndpoint = "not_for_endpoint"
	ReasonMalformed      = "malformed"
	ReasonQueueFull      = "driver_queue_full"
)

// Byte directions for BytesTotal.
const (
	DirectionTx = "tx"
	DirectionRx = "rx"
)

var latencyBuckets = prometheus.ExponentialBuckets(0.000001, 2, 20) // 1µs to ~1s

var (
	// PushLatencySeconds measures completed push attempts, encode plus transmit.
	PushLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bypass_push_latency_seconds",
			Help:    "Latency of completed push operations in seconds",
			Buckets: latencyBuckets,
		},
	)

	// PopLatencySeconds measures completed pop attempts, backlog read plus decode.
	PopLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bypass_pop_latency_seconds",
			Help:    "Latency of completed pop operations in seconds",
			Buckets: latencyBuckets,
		},
	)

	// DevReadLatencySeconds measures one driver receive burst.
	DevReadLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bypass_dev_read_latency_seconds",
			Help:    "Latency of driver receive bursts in seconds",
			Buckets: latencyBuckets,
		},
	)

	// DevWriteLatencySeconds measures one driver transmit burst.
	DevWriteLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bypass_dev_write_latency_seconds",
			Help:    "Latency of driver transmit bursts in seconds",
			Buckets: latencyBuckets,
		},
	)

	// RxBurstSize tracks how many frames each receive burst returned.
	RxBurstSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bypass_rx_burst_size",
			Help:    "Number of frames returned per driver receive burst",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1, 2, 4, ..., 2048
		},
	)

	// FramesTxTotal counts frames accepted by the driver.
	FramesTxTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bypass_frames_tx_total",
			Help: "Total number of frames accepted for transmission",
		},
	)

	// FramesRxTotal counts frames taken from the receive backlog.
	FramesRxTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bypass_frames_rx_total",
			Help: "Total number of frames received from the driver",
		},
	)

	// FramesDroppedTotal counts inbound frames discarded by the receive path.
	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bypass_frames_dropped_total",
			Help: "Total number of received frames dropped",
		},
		[]string{"reason"},
	)

	// BytesTotal counts message payload bytes moved by completed operations.
	BytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bypass_bytes_total",
			Help: "Total number of message payload bytes moved",
		},
		[]string{"direction"},
	)
)
