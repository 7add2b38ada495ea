package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	passesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warp_passes_total",
		Help: "Reconciliation passes by kind and status",
	}, []string{"kind", "status"})

	passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warp_pass_duration_seconds",
		Help:    "Time to run one reconciliation pass",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
	}, []string{"kind"})

	entitiesChanged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warp_entities_changed_total",
		Help: "Live entities created or destroyed by reconciliation",
	}, []string{"op"})

	fieldsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warp_fields_skipped_total",
		Help: "Declared fields that could not be coerced or assigned",
	})

	assetFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warp_asset_failures_total",
		Help: "Asset lookups that failed during attribute apply",
	})

	passesCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warp_requests_coalesced_total",
		Help: "Reload requests merged into an already pending request",
	})
)

func observePass(r PassResult) {
	status := "ok"
	if r.Err != nil {
		status = "failed"
	}
	passesTotal.WithLabelValues(string(r.Kind), status).Inc()
	passDuration.WithLabelValues(string(r.Kind)).Observe(r.Duration.Seconds())
	entitiesChanged.WithLabelValues("create").Add(float64(r.Creates))
	entitiesChanged.WithLabelValues("destroy").Add(float64(r.Destroys))
	fieldsSkipped.Add(float64(r.Skipped))
	assetFailures.Add(float64(r.AssetFailures))
}
