package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fms_telemetry_readings_ingested_total",
		Help: "Telemetry readings persisted, across both ingestion paths.",
	})

	Anomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fms_telemetry_anomalies_total",
		Help: "Readings persisted with a failed context validation, by severity.",
	}, []string{"severity"})

	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fms_event_publish_failures_total",
		Help: "Event handler failures, by handler name. Never surfaced to callers.",
	}, []string{"handler"})

	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fms_connection_sweeps_total",
		Help: "Completed connection-state sweeps.",
	})

	SweepSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fms_connection_sweep_skips_total",
		Help: "Ticks skipped because a previous sweep was still running.",
	})

	SweepVehicleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fms_connection_sweep_vehicle_errors_total",
		Help: "Per-vehicle failures during a sweep; the sweep continues.",
	})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fms_connection_status_transitions_total",
		Help: "Connection status changes written by the monitor.",
	}, []string{"from", "to"})
)
