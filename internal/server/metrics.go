package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests      *prometheus.CounterVec
	sends         *prometheus.CounterVec
	confirmations prometheus.Counter
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invites_http_requests_total",
			Help: "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invites_sends_total",
			Help: "Invitations handed to a channel, by flow type.",
		}, []string{"tipo"}),
		confirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invites_confirmations_total",
			Help: "RSVP submissions stored.",
		}),
	}
	reg.MustRegister(m.requests, m.sends, m.confirmations)
	return m
}
