package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the pipeline's operational counters. Registering against a
// fresh registry per run keeps tests isolated; production callers pass
// prometheus.DefaultRegisterer.
type Metrics struct {
	RecordsProcessed prometheus.Counter
	RecordsFailed    prometheus.Counter
	EntitiesSkipped  *prometheus.CounterVec
	UniqueEntities   *prometheus.GaugeVec
	ChunksWritten    prometheus.Counter
	Checkpoints      prometheus.Counter
	SaveFailures     *prometheus.CounterVec
}

// NewMetrics registers the pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "spendgraph_records_processed_total",
			Help: "Input records dispatched through the entity stores.",
		}),
		RecordsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "spendgraph_records_failed_total",
			Help: "Input records that failed to parse or dispatch.",
		}),
		EntitiesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spendgraph_entities_skipped_total",
			Help: "Records skipped per entity type due to unresolvable keys.",
		}, []string{"entity_type"}),
		UniqueEntities: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spendgraph_unique_entities",
			Help: "Deduplicated instances held per entity type.",
		}, []string{"entity_type"}),
		ChunksWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "spendgraph_chunks_written_total",
			Help: "Transaction chunk files emitted.",
		}),
		Checkpoints: factory.NewCounter(prometheus.CounterOpts{
			Name: "spendgraph_checkpoints_total",
			Help: "Completed checkpoint saves.",
		}),
		SaveFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spendgraph_save_failures_total",
			Help: "Failed artifact or checkpoint saves per entity type.",
		}, []string{"entity_type"}),
	}
}
