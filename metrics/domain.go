package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain holds the counters specific to secret lifecycle events, registered
// separately from the generic HTTP traffic metrics in Metrics so the
// httpapi handlers can depend on just this narrow surface.
type Domain struct {
	SecretsCreated    *prometheus.CounterVec
	SecretsRetrieved  prometheus.Counter
	SecretsExpired    prometheus.Counter
	SecretsDestroyed  *prometheus.CounterVec
	RestrictionDenied *prometheus.CounterVec
}

// NewDomain registers the secret-domain counters on the default registry.
func NewDomain() *Domain {
	return &Domain{
		SecretsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hakanai",
			Name:      "secrets_created_total",
			Help:      "Number of secrets created, labeled by caller kind.",
		}, []string{"caller"}),
		SecretsRetrieved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "hakanai",
			Name:      "secrets_retrieved_total",
			Help:      "Number of secrets successfully retrieved and consumed.",
		}),
		SecretsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "hakanai",
			Name:      "secrets_expired_total",
			Help:      "Number of secrets reclaimed by TTL before being retrieved.",
		}),
		SecretsDestroyed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hakanai",
			Name:      "secrets_destroyed_total",
			Help:      "Number of secrets destroyed early, labeled by reason.",
		}, []string{"reason"}),
		RestrictionDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hakanai",
			Name:      "restriction_denied_total",
			Help:      "Number of retrieval attempts denied, labeled by restriction code.",
		}, []string{"code"}),
	}
}
