package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics instruments the survey pipeline
type metrics struct {
	scansTotal           prometheus.Counter
	scanErrorsTotal      prometheus.Counter
	recordsAccepted      prometheus.Counter
	recordsDiscarded     prometheus.Counter
	recordsDuplicate     prometheus.Counter
	recommendationsTotal prometheus.Counter
	profilesGauge        prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		scansTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "wifisurvey_scans_total",
			Help: "Number of wireless scans run.",
		}),
		scanErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "wifisurvey_scan_errors_total",
			Help: "Number of scans that failed at the driver.",
		}),
		recordsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "wifisurvey_records_accepted_total",
			Help: "Scan records accepted into the site model.",
		}),
		recordsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "wifisurvey_records_discarded_total",
			Help: "Scan records discarded as malformed or mistagged.",
		}),
		recordsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "wifisurvey_records_duplicate_total",
			Help: "Scan records skipped as exact duplicates.",
		}),
		recommendationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "wifisurvey_recommendations_total",
			Help: "Channel recommendations emitted.",
		}),
		profilesGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wifisurvey_profiles",
			Help: "Distinct APs currently in the site model.",
		}),
	}
}
