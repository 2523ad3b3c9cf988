// Package metrics exposes process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry collects the counters the vote path reports into.
type Registry struct {
	registry *prometheus.Registry

	VotesAccepted prometheus.Counter
	VotesRejected *prometheus.CounterVec
	EventsRelayed prometheus.Counter
}

func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Registry{
		registry: registry,
		VotesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ballotbox",
			Name:      "votes_accepted_total",
			Help:      "Ballots durably recorded.",
		}),
		VotesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ballotbox",
			Name:      "votes_rejected_total",
			Help:      "Ballots rejected, partitioned by reason.",
		}, []string{"reason"}),
		EventsRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ballotbox",
			Name:      "outbox_events_relayed_total",
			Help:      "Outbox messages published to the event bus.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
