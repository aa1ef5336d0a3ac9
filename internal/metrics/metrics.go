// Package metrics registers the Prometheus instruments for the booking and
// capacity paths. Exposed on /metrics by the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketd_bookings_created_total",
		Help: "Bookings successfully created.",
	})

	BookingsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketd_bookings_cancelled_total",
		Help: "Bookings cancelled, by reason class.",
	}, []string{"reason"})

	BookingsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketd_bookings_confirmed_total",
		Help: "Bookings confirmed after payment.",
	})

	CapacityOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketd_capacity_operations_total",
		Help: "Capacity coordinator operations, by operation and outcome.",
	}, []string{"operation", "outcome"})

	RateLimitDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketd_rate_limit_denied_total",
		Help: "Requests denied by the sliding-window rate limiter, by action.",
	}, []string{"action"})

	LockFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketd_lock_acquisition_failures_total",
		Help: "Lock acquisitions that exhausted their retries.",
	})

	OrphanedCapacityReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketd_orphaned_capacity_released_total",
		Help: "Tickets reclaimed by the ledger reconciliation sweep.",
	})
)
