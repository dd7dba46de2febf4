package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts cache maintenance work.
//
// Counters are registered with the Registerer passed to NewMetrics; a nil
// Registerer yields working but unregistered counters.
type Metrics struct {
	// Recomputes counts item lists computed during invalidation.
	Recomputes prometheus.Counter

	// Writes counts cache records persisted.
	Writes prometheus.Counter

	// ShortCircuits counts invalidations that stopped because the
	// recomputed list matched the stored one.
	ShortCircuits prometheus.Counter

	// LiveComputes counts item lists computed on demand for reads that
	// found no cache record or asked for a live computation.
	LiveComputes prometheus.Counter

	// CycleRejections counts edges rejected because they would close a
	// cycle.
	CycleRejections prometheus.Counter
}

// NewMetrics creates the catalog counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Recomputes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taxon",
			Subsystem: "cache",
			Name:      "recomputes_total",
			Help:      "Item lists recomputed during cache invalidation.",
		}),
		Writes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taxon",
			Subsystem: "cache",
			Name:      "writes_total",
			Help:      "Cache records written.",
		}),
		ShortCircuits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taxon",
			Subsystem: "cache",
			Name:      "short_circuits_total",
			Help:      "Invalidations stopped because the item list was unchanged.",
		}),
		LiveComputes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taxon",
			Subsystem: "cache",
			Name:      "live_computes_total",
			Help:      "Item lists computed on demand for reads.",
		}),
		CycleRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taxon",
			Subsystem: "graph",
			Name:      "cycle_rejections_total",
			Help:      "Edges rejected because they would close a cycle.",
		}),
	}
}
