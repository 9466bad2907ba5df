package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_consumer_messages_received",
	Help: "Number of broker messages received",
})

var decodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_event_decode_errors",
	Help: "Number of broker messages which could not be decoded in to an event",
}, []string{"type"})

var eventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_consumer_events_skipped",
	Help: "Number of decoded events skipped without processing",
}, []string{"reason"})
