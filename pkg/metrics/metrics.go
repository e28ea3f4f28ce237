package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SignIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "targup", Name: "signin_total", Help: "Provider sign-ins by provider and outcome (new_user, linked, returning, error)."},
		[]string{"provider", "outcome"},
	)
	Registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "targup", Name: "registrations_total", Help: "Local registrations by outcome."},
		[]string{"outcome"},
	)
	TokenVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "targup", Name: "token_verifications_total", Help: "Bearer token verifications by outcome."},
		[]string{"outcome"},
	)
	Revocations = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "targup", Name: "revocations_total", Help: "Number of revoked tokens."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(SignIns)
	reg.MustRegister(Registrations)
	reg.MustRegister(TokenVerifications)
	reg.MustRegister(Revocations)
}
