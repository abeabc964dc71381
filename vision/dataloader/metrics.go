package dataloader

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts loader activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	SamplesFetched  prometheus.Counter
	ImagesSkipped   prometheus.Counter
	BatchesCollated prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

// NewMetrics creates the loader counters and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SamplesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synth90k_samples_fetched_total",
			Help: "Number of samples decoded and encoded",
		}),
		ImagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synth90k_images_skipped_total",
			Help: "Number of unreadable images skipped during fetch",
		}),
		BatchesCollated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synth90k_batches_collated_total",
			Help: "Number of batches produced",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synth90k_image_cache_hits_total",
			Help: "Number of image cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synth90k_image_cache_misses_total",
			Help: "Number of image cache misses",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.SamplesFetched, m.ImagesSkipped, m.BatchesCollated, m.CacheHits, m.CacheMisses)
	}
	return m
}

func (m *Metrics) sampleFetched() {
	if m != nil {
		m.SamplesFetched.Inc()
	}
}

func (m *Metrics) imageSkipped() {
	if m != nil {
		m.ImagesSkipped.Inc()
	}
}

func (m *Metrics) batchCollated() {
	if m != nil {
		m.BatchesCollated.Inc()
	}
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}
