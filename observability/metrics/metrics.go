package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IndexerMetrics bundles the collectors named in the pipeline's error-handling
// design: records_indexed, rpc_errors, and ipfs_retries, plus cursor lag
// gauges used to alert on stuck indexers.
type IndexerMetrics struct {
	recordsIndexed *prometheus.CounterVec
	rpcErrors      *prometheus.CounterVec
	ipfsRetries    *prometheus.CounterVec
	cursorIndex    *prometheus.GaugeVec
	cursorLag      *prometheus.GaugeVec
	scanDuration   *prometheus.HistogramVec
}

var (
	indexerOnce     sync.Once
	indexerRegistry *IndexerMetrics

	grouperOnce     sync.Once
	grouperRegistry *GrouperMetrics
)

// Indexer returns the process-wide indexer metrics registry.
func Indexer() *IndexerMetrics {
	indexerOnce.Do(func() {
		indexerRegistry = &IndexerMetrics{
			recordsIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "daoindexer",
				Subsystem: "indexer",
				Name:      "records_indexed_total",
				Help:      "Count of persisted records segmented by source and kind.",
			}, []string{"source", "kind"}),
			rpcErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "daoindexer",
				Subsystem: "indexer",
				Name:      "rpc_errors_total",
				Help:      "Count of RPC/HTTP errors segmented by source and error kind.",
			}, []string{"source", "kind"}),
			ipfsRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "daoindexer",
				Subsystem: "indexer",
				Name:      "ipfs_retries_total",
				Help:      "Count of IPFS gateway retry attempts segmented by gateway.",
			}, []string{"gateway"}),
			cursorIndex: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "daoindexer",
				Subsystem: "indexer",
				Name:      "cursor_index",
				Help:      "Current cursor position (block or page number) per source.",
			}, []string{"source"}),
			cursorLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "daoindexer",
				Subsystem: "indexer",
				Name:      "cursor_lag",
				Help:      "Distance between the cursor and the chain tip/latest page per source.",
			}, []string{"source"}),
			scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "daoindexer",
				Subsystem: "indexer",
				Name:      "scan_duration_seconds",
				Help:      "Latency distribution of a single indexer pass.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"source"}),
		}
		prometheus.MustRegister(
			indexerRegistry.recordsIndexed,
			indexerRegistry.rpcErrors,
			indexerRegistry.ipfsRetries,
			indexerRegistry.cursorIndex,
			indexerRegistry.cursorLag,
			indexerRegistry.scanDuration,
		)
	})
	return indexerRegistry
}

// RecordIndexed increments the indexed-record counter for a source/kind pair.
func (m *IndexerMetrics) RecordIndexed(source, kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsIndexed.WithLabelValues(label(source), label(kind)).Add(float64(n))
}

// RecordRPCError increments the RPC/HTTP error counter.
func (m *IndexerMetrics) RecordRPCError(source, kind string) {
	if m == nil {
		return
	}
	m.rpcErrors.WithLabelValues(label(source), label(kind)).Inc()
}

// RecordIPFSRetry increments the IPFS gateway retry counter.
func (m *IndexerMetrics) RecordIPFSRetry(gateway string) {
	if m == nil {
		return
	}
	m.ipfsRetries.WithLabelValues(label(gateway)).Inc()
}

// SetCursor updates the cursor position and lag gauges for a source.
func (m *IndexerMetrics) SetCursor(source string, index, tip uint64) {
	if m == nil {
		return
	}
	l := label(source)
	m.cursorIndex.WithLabelValues(l).Set(float64(index))
	lag := float64(0)
	if tip > index {
		lag = float64(tip - index)
	}
	m.cursorLag.WithLabelValues(l).Set(lag)
}

// ObserveScan records how long a single scan pass took.
func (m *IndexerMetrics) ObserveScan(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.WithLabelValues(label(source)).Observe(d.Seconds())
}

// GrouperMetrics bundles collectors for the proposal-group fusion pass.
type GrouperMetrics struct {
	groupsCreated *prometheus.CounterVec
	itemsGrouped  *prometheus.CounterVec
	passDuration  prometheus.Histogram
}

// Grouper returns the process-wide grouper metrics registry.
func Grouper() *GrouperMetrics {
	grouperOnce.Do(func() {
		grouperRegistry = &GrouperMetrics{
			groupsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "daoindexer",
				Subsystem: "grouper",
				Name:      "groups_created_total",
				Help:      "Count of new proposal groups created segmented by dao.",
			}, []string{"dao"}),
			itemsGrouped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "daoindexer",
				Subsystem: "grouper",
				Name:      "items_grouped_total",
				Help:      "Count of items placed into a group segmented by match tier.",
			}, []string{"tier"}),
			passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "daoindexer",
				Subsystem: "grouper",
				Name:      "pass_duration_seconds",
				Help:      "Latency distribution of a full grouper pass across all DAOs.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			grouperRegistry.groupsCreated,
			grouperRegistry.itemsGrouped,
			grouperRegistry.passDuration,
		)
	})
	return grouperRegistry
}

// RecordGroupCreated increments the groups-created counter for a DAO.
func (m *GrouperMetrics) RecordGroupCreated(dao string) {
	if m == nil {
		return
	}
	m.groupsCreated.WithLabelValues(label(dao)).Inc()
}

// RecordItemGrouped increments the items-grouped counter for a match tier
// ("url", "semantic", or "singleton").
func (m *GrouperMetrics) RecordItemGrouped(tier string) {
	if m == nil {
		return
	}
	m.itemsGrouped.WithLabelValues(label(tier)).Inc()
}

// ObservePass records the wall-clock duration of a grouper pass.
func (m *GrouperMetrics) ObservePass(d time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.Observe(d.Seconds())
}

func label(v string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
