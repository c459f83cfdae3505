// Package metrics provides Prometheus instrumentation for the parties: commands
// handled, connection health and protocol rounds.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all metrics
	Namespace = "mpcsum"

	LabelCommand = "command"
	LabelOutcome = "outcome"
	LabelPeer    = "peer"
	LabelRound   = "round"
	LabelStore   = "store"

	// Command outcomes. Unknown commands are dropped silently, malformed ones
	// are errors of the sender.
	OutcomeOK        = "ok"
	OutcomeMalformed = "malformed"
	OutcomeUnknown   = "unknown"
	OutcomeError     = "error"

	// Round outcomes
	RoundReady   = "ready"
	RoundTimeout = "timeout"
)

var (
	// CommandsTotal counts processed commands by keyword and outcome.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "commands_total",
			Help:      "Total number of commands processed by keyword and outcome",
		},
		[]string{LabelCommand, LabelOutcome},
	)

	// SendFailures counts failed writes to a peer stream.
	SendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "send_failures_total",
			Help:      "Total number of failed writes to peer streams",
		},
		[]string{LabelPeer},
	)

	// ConnectRetries counts connection attempts that were retried.
	ConnectRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connect_retries_total",
			Help:      "Total number of retried connection attempts per peer",
		},
		[]string{LabelPeer},
	)

	// InboundStreams is the number of currently open inbound streams.
	InboundStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "inbound_streams",
			Help:      "Number of open inbound streams",
		},
	)

	// RecordsStored counts records appended to the share and sum stores.
	RecordsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_stored_total",
			Help:      "Total number of records appended per store",
		},
		[]string{LabelStore},
	)

	// DuplicateRecords counts records whose origin was already present.
	DuplicateRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "duplicate_records_total",
			Help:      "Total number of records received twice from the same origin",
		},
		[]string{LabelStore},
	)

	// RoundWait tracks how long a party waited for a round to complete.
	RoundWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "round_wait_seconds",
			Help:      "Time spent waiting for a protocol round to complete",
			Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
		[]string{LabelRound, LabelOutcome},
	)
)

// RecordCommand increments the command counter.
func RecordCommand(command, outcome string) {
	CommandsTotal.WithLabelValues(command, outcome).Inc()
}

// ObserveRoundWait records the time spent since start waiting for a round.
func ObserveRoundWait(round, outcome string, start time.Time) {
	RoundWait.WithLabelValues(round, outcome).Observe(time.Since(start).Seconds())
}
