package metrics

import (
	"maps"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	monitorTracked = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gotasklist",
		Subsystem: "monitor",
		Name:      "tracked_tasks",
		Help:      "Tasks in the latest snapshot of a query",
	}, []string{"query"})

	monitorTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gotasklist",
		Subsystem: "monitor",
		Name:      "transitions_total",
		Help:      "Tasks started or exited between snapshots",
	}, []string{"query", "transition"})

	imageMemory = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gotasklist",
		Subsystem: "monitor",
		Name:      "image_memory_bytes",
		Help:      "Summed memory usage of all tasks sharing an image name",
	}, []string{"query", "image"})

	// Local copy of the image gauges for API access.
	imageCache   = make(map[string]map[string]int64)
	imageCacheMu sync.RWMutex
)

// RecordSnapshot updates the gauges for one poll of query.
func RecordSnapshot(query string, tracked, started, exited int) {
	monitorTracked.WithLabelValues(query).Set(float64(tracked))
	if started > 0 {
		monitorTransitions.WithLabelValues(query, "started").Add(float64(started))
	}
	if exited > 0 {
		monitorTransitions.WithLabelValues(query, "exited").Add(float64(exited))
	}
}

// SetImageMemory replaces the per-image memory gauges of query. Images
// missing from usage are removed.
func SetImageMemory(query string, usage map[string]int64) {
	imageCacheMu.Lock()
	defer imageCacheMu.Unlock()

	for image := range imageCache[query] {
		if _, ok := usage[image]; !ok {
			imageMemory.DeleteLabelValues(query, image)
		}
	}
	for image, bytes := range usage {
		imageMemory.WithLabelValues(query, image).Set(float64(bytes))
	}
	imageCache[query] = maps.Clone(usage)
}

// GetImageMemory returns a copy of the last per-image usage of query.
func GetImageMemory(query string) map[string]int64 {
	imageCacheMu.RLock()
	defer imageCacheMu.RUnlock()
	return maps.Clone(imageCache[query])
}

// DeleteMonitorMetrics removes all series of query.
func DeleteMonitorMetrics(query string) {
	monitorTracked.DeleteLabelValues(query)
	monitorTransitions.DeleteLabelValues(query, "started")
	monitorTransitions.DeleteLabelValues(query, "exited")

	imageCacheMu.Lock()
	for image := range imageCache[query] {
		imageMemory.DeleteLabelValues(query, image)
	}
	delete(imageCache, query)
	imageCacheMu.Unlock()
}
