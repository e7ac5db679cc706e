package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	worldStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "worldsmith",
			Subsystem: "world",
			Name:      "starts_total",
			Help:      "Number of server starts per world.",
		}, []string{"world"},
	)
	worldStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "worldsmith",
			Subsystem: "world",
			Name:      "stops_total",
			Help:      "Number of graceful stops per world.",
		}, []string{"world"},
	)
	bootstraps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "worldsmith",
			Subsystem: "bootstrap",
			Name:      "runs_total",
			Help:      "Number of provisioning runs by outcome.",
		}, []string{"status"},
	)
	migrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "worldsmith",
			Subsystem: "migrate",
			Name:      "runs_total",
			Help:      "Number of version migrations by outcome.",
		}, []string{"status"},
	)
	runningWorlds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "worldsmith",
			Subsystem: "world",
			Name:      "running",
			Help:      "Worlds currently running a server process.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{worldStarts, worldStops, bootstraps, migrations, runningWorlds}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op if Register hasn't been called.

func IncStart(world string) {
	if regOK.Load() {
		worldStarts.WithLabelValues(world).Inc()
	}
}

func IncStop(world string) {
	if regOK.Load() {
		worldStops.WithLabelValues(world).Inc()
	}
}

func IncBootstrap(status string) {
	if regOK.Load() {
		bootstraps.WithLabelValues(status).Inc()
	}
}

func IncMigration(status string) {
	if regOK.Load() {
		migrations.WithLabelValues(status).Inc()
	}
}

func AddRunning(delta int) {
	if regOK.Load() {
		runningWorlds.Add(float64(delta))
	}
}
