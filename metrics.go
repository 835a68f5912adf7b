package rockguard

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aalhour/rockguard/internal/metrics"
)

// Metrics is a set of Prometheus collectors that any number of databases
// can share through Options.Metrics.
type Metrics = metrics.Metrics

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	return metrics.New(reg)
}
