// Package metrics exposes Prometheus instrumentation for the derivation
// pipeline. Collectors are registered with promauto on the default registry
// and served from the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth is the number of work items waiting in the in-memory queue.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pxldrop_thumbnail_queue_depth",
		Help: "Number of items waiting in the thumbnail work queue.",
	})

	// ItemsProcessed counts queue items by outcome.
	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pxldrop_thumbnail_items_total",
		Help: "Thumbnail queue items processed, by outcome.",
	}, []string{"outcome"})

	// SweepProcessed counts files handled by the reconciliation sweep.
	SweepProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pxldrop_reconcile_files_total",
		Help: "Files processed by the thumbnail reconciliation sweep, by outcome.",
	}, []string{"outcome"})

	// UploadsTotal counts uploads by path (sync/deferred) and outcome.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pxldrop_uploads_total",
		Help: "File uploads, by path and outcome.",
	}, []string{"path", "outcome"})
)
