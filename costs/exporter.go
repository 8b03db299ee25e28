package costs

import "github.com/prometheus/client_golang/prometheus"

// Exporter republishes OperationCost observations as Prometheus metrics. It
// is the only place this module imports client_golang directly; callers
// that don't want metrics simply never construct one.
type Exporter struct {
	seekCount            prometheus.Counter
	storageAddedBytes    prometheus.Counter
	storageReplacedBytes prometheus.Counter
	storageLoadedBytes   prometheus.Counter
	hashNodeCalls        prometheus.Counter
	storageRemovedBytes  prometheus.Counter
	operations           prometheus.Counter
}

// NewExporter builds an Exporter whose metric names are prefixed with
// namespace (e.g. "groveforest").
func NewExporter(namespace string) *Exporter {
	mk := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "costs",
			Name:      name,
			Help:      help,
		})
	}
	return &Exporter{
		seekCount:            mk("seek_count_total", "Cumulative seek_count across observed operations."),
		storageAddedBytes:    mk("storage_added_bytes_total", "Cumulative storage_added_bytes across observed operations."),
		storageReplacedBytes: mk("storage_replaced_bytes_total", "Cumulative storage_replaced_bytes across observed operations."),
		storageLoadedBytes:   mk("storage_loaded_bytes_total", "Cumulative storage_loaded_bytes across observed operations."),
		hashNodeCalls:        mk("hash_node_calls_total", "Cumulative hash_node_calls across observed operations."),
		storageRemovedBytes:  mk("storage_removed_bytes_total", "Cumulative storage_removed_bytes across observed operations, any attribution kind."),
		operations:           mk("operations_total", "Number of OperationCost values observed."),
	}
}

// MustRegister registers every metric the Exporter owns against reg.
func (e *Exporter) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		e.seekCount,
		e.storageAddedBytes,
		e.storageReplacedBytes,
		e.storageLoadedBytes,
		e.hashNodeCalls,
		e.storageRemovedBytes,
		e.operations,
	)
}

// Observe folds one OperationCost into the exported counters.
func (e *Exporter) Observe(c OperationCost) {
	e.seekCount.Add(float64(c.SeekCount))
	e.storageAddedBytes.Add(float64(c.StorageAddedBytes))
	e.storageReplacedBytes.Add(float64(c.StorageReplacedBytes))
	e.storageLoadedBytes.Add(float64(c.StorageLoadedBytes))
	e.hashNodeCalls.Add(float64(c.HashNodeCalls))
	e.storageRemovedBytes.Add(float64(c.StorageRemovedBytes.Total()))
	e.operations.Inc()
}
