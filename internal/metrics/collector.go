package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionStats provides the collector access to live playback-session state.
type SessionStats interface {
	SessionCount() int
	CachedBlockCount() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats SessionStats

	activeSessions *prometheus.Desc
	cachedBlocks   *prometheus.Desc
}

// NewCollector creates a collector over live session state. stats may be nil
// before the session registry exists; gauges then report 0.
func NewCollector(stats SessionStats) *Collector {
	return &Collector{
		stats: stats,
		activeSessions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_sessions"),
			"Current number of playback sessions.",
			nil, nil,
		),
		cachedBlocks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "cached_blocks"),
			"Audio blocks held across all session caches.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeSessions
	ch <- c.cachedBlocks
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var sessions, cached int
	if c.stats != nil {
		sessions = c.stats.SessionCount()
		cached = c.stats.CachedBlockCount()
	}
	ch <- prometheus.MustNewConstMetric(c.activeSessions, prometheus.GaugeValue, float64(sessions))
	ch <- prometheus.MustNewConstMetric(c.cachedBlocks, prometheus.GaugeValue, float64(cached))
}
