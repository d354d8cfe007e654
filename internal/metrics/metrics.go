// Package metrics exposes Prometheus counters for the registration and
// payment flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegistrationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memberhub_registrations_created_total",
		Help: "Number of event registrations created, waiting list included.",
	})

	RegistrationsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memberhub_registrations_cancelled_total",
		Help: "Number of cancelled registrations by cancel kind.",
	}, []string{"kind"})

	RegistrationsPromoted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memberhub_registrations_promoted_total",
		Help: "Number of waiting-list registrations promoted to confirmed.",
	})

	PaymentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memberhub_payments_created_total",
		Help: "Number of payments created by payment type.",
	}, []string{"type"})

	PaymentsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memberhub_payments_deleted_total",
		Help: "Number of payments deleted.",
	})

	GuardRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memberhub_payable_guard_rejections_total",
		Help: "Number of saves rejected by the payable immutability guard.",
	})

	EntriesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memberhub_membership_entries_completed_total",
		Help: "Number of membership entries completed by payment.",
	})
)
