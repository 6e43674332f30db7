package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	challengesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soulgate_challenges_issued_total",
		Help: "Challenges issued to wallets.",
	})

	loginsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soulgate_logins_total",
		Help: "Successful signature verifications.",
	})

	throttledRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soulgate_throttled_requests_total",
		Help: "Requests rejected by the rate limiter.",
	}, []string{"class"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "soulgate_active_sessions",
		Help: "Live sessions in the session store.",
	})

	activeChallenges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "soulgate_active_challenges",
		Help: "Live challenges in the challenge store.",
	})
)
