// Package metrics exposes registration lifecycle events as Prometheus metrics.
package metrics

import (
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ngone6325/gofac/v2/registration"
)

// Collector is a registration.Observer backed by Prometheus collectors.
type Collector struct {
	constructions *prometheus.CounterVec
	failures      *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

var _ registration.Observer = (*Collector)(nil)

// NewCollector creates the collectors under namespace and registers them with
// reg. A nil reg leaves them unregistered.
func NewCollector(namespace string, reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		constructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "constructions_total",
			Help:      "Successful service constructions.",
		}, []string{"service", "lifetime"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "construction_failures_total",
			Help:      "Failed service constructions.",
		}, []string{"service", "lifetime"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "Cached instances dropped, by reason.",
		}, []string{"service", "lifetime", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "construction_duration_seconds",
			Help:      "Time spent constructing services.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"service", "lifetime"}),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{c.constructions, c.failures, c.invalidations, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) Constructed(t reflect.Type, lifetime registration.Lifetime, took time.Duration) {
	c.constructions.WithLabelValues(t.String(), lifetime.String()).Inc()
	c.duration.WithLabelValues(t.String(), lifetime.String()).Observe(took.Seconds())
}

func (c *Collector) ConstructionFailed(t reflect.Type, lifetime registration.Lifetime, _ error) {
	c.failures.WithLabelValues(t.String(), lifetime.String()).Inc()
}

func (c *Collector) Invalidated(t reflect.Type, lifetime registration.Lifetime, reason registration.Reason) {
	c.invalidations.WithLabelValues(t.String(), lifetime.String(), string(reason)).Inc()
}
