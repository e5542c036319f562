package alts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linksRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "altcheck_links_recorded_total",
		Help: "Connection edges recorded, by outcome (inserted, existing, error)",
	}, []string{"result"})

	alertsRaised = promauto.NewCounter(prometheus.CounterOpts{
		Name: "altcheck_alerts_total",
		Help: "Connections that shared an address with other accounts",
	})

	clusterResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "altcheck_cluster_resolutions_total",
		Help: "Cluster resolutions, by outcome (complete, partial)",
	}, []string{"result"})

	clusterSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "altcheck_cluster_size",
		Help:    "Accounts plus addresses in a resolved cluster",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	clusterLookups = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "altcheck_cluster_store_lookups",
		Help:    "Store lookups issued per cluster resolution",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)
