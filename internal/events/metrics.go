package events

import "github.com/prometheus/client_golang/prometheus"

var eventsPublished = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_events_published_total",
		Help: "Total events handed to the bus, by type and outcome.",
	},
	[]string{"event", "status"},
)

func init() {
	prometheus.MustRegister(eventsPublished)
}

func incPublished(eventType Type, status string) {
	eventsPublished.WithLabelValues(string(eventType), status).Inc()
}
