// Package metrics holds the Prometheus collectors shared by the seed service and CLI.
package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RemoteCalls counts calls against the commerce platform and portal by operation and outcome.
	RemoteCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "headstart",
		Subsystem: "platform",
		Name:      "calls_total",
		Help:      "Remote calls issued against the commerce platform",
	}, []string{"op", "outcome"})

	// StepDuration observes how long each provisioning step takes.
	StepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "headstart",
		Subsystem: "seed",
		Name:      "step_duration_seconds",
		Help:      "Duration of provisioning steps",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"flow", "step", "outcome"})

	// BatchInFlight tracks operations currently running inside the batch runner.
	BatchInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "headstart",
		Subsystem: "batch",
		Name:      "in_flight",
		Help:      "Batch operations currently in flight",
	})

	// Runs counts completed orchestrator runs.
	Runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "headstart",
		Subsystem: "seed",
		Name:      "runs_total",
		Help:      "Provisioning runs by kind and status",
	}, []string{"kind", "status"})
)

func init() {
	registerCollector(RemoteCalls)
	registerCollector(StepDuration)
	registerCollector(BatchInFlight)
	registerCollector(Runs)
}

func registerCollector(collector prometheus.Collector) {
	if err := prometheus.Register(collector); err != nil {
		log.Println("WARNING: instrumentation error:" + err.Error())
	}
}

// Outcome maps an error to the outcome label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
