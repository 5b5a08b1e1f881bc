// Package metrics exposes the daemon's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsRecorded counts activity events accepted by the counter
	// store via the ingest API.
	EventsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_events_recorded_total",
		Help: "Activity events recorded in the counter store.",
	})

	// EventsDropped counts events lost to store failures.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_events_dropped_total",
		Help: "Activity events dropped because the counter store was unavailable.",
	})

	// ReportCycles counts report-refresh cycle outcomes.
	ReportCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_report_cycles_total",
		Help: "Report refresh cycles by outcome.",
	}, []string{"status"})

	// RetentionCycles counts retention-sweep cycle outcomes.
	RetentionCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_retention_cycles_total",
		Help: "Retention sweep cycles by outcome.",
	}, []string{"status"})

	// Publishes counts reconciler publish attempts by result
	// (edited, created, recreated, failed).
	Publishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_publishes_total",
		Help: "Report publish attempts by result.",
	}, []string{"result"})

	// EntitiesSkipped counts entities excluded from a report cycle
	// because their metric computation failed.
	EntitiesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_report_entities_skipped_total",
		Help: "Entities excluded from a report because metric computation failed.",
	})
)
