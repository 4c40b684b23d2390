package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RecordsIngested counts raw records pulled in per source and stream type.
// This metric is a counter and only increases.
var RecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "iptv_catalog_records_ingested",
	Help: "Raw records ingested",
}, []string{"source", "type"})

// IngestErrors counts per-source ingest failures. The "stage" label
// distinguishes fetch, parse and auth failures.
var IngestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "iptv_catalog_ingest_errors",
	Help: "Number of ingest errors",
}, []string{"source", "stage"})

// CatalogSize tracks the deduplicated catalog size per stream type.
// This metric is a gauge, updated after each refresh pass.
var CatalogSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "iptv_catalog_content_count",
	Help: "Deduplicated content entries",
}, []string{"type"})

// EpgCacheSize tracks how many channels currently hold cached guide data.
var EpgCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "iptv_catalog_epg_cached_channels",
	Help: "Channels with cached EPG data",
})

// EpgFetches counts guide fetches by outcome ("hit", "miss", "error").
var EpgFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "iptv_catalog_epg_fetches",
	Help: "EPG fetch operations",
}, []string{"outcome"})

// EnrichLookups counts metadata lookups by outcome ("hit", "miss",
// "error").
var EnrichLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "iptv_catalog_enrich_lookups",
	Help: "Metadata enrichment lookups",
}, []string{"outcome"})

// RefreshDuration observes how long a full catalog refresh takes.
var RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "iptv_catalog_refresh_seconds",
	Help:    "Catalog refresh duration",
	Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
})
