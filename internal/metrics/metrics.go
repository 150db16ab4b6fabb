package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkmarket",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status class.",
		},
		[]string{"endpoint", "status"},
	)

	reservationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkmarket",
			Name:      "reservation_events_total",
			Help:      "Reservation lifecycle transitions by event type.",
		},
		[]string{"event"},
	)

	reservationConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parkmarket",
			Name:      "reservation_conflicts_total",
			Help:      "Reservation attempts rejected because the interval was taken.",
		},
	)

	slotRemovals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkmarket",
			Name:      "slot_removals_total",
			Help:      "Slot removals by mode (renumbered or forced).",
		},
		[]string{"mode"},
	)

	expiredHolds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parkmarket",
			Name:      "expired_holds_total",
			Help:      "Processing reservations cancelled by the expiry sweeper.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			reservationEvents,
			reservationConflicts,
			slotRemovals,
			expiredHolds,
		)
	})
}

// IncHTTP increments the request counter for an endpoint and status class.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncReservationEvent counts a lifecycle transition by its event type.
func IncReservationEvent(event string) {
	reservationEvents.WithLabelValues(event).Inc()
}

// IncConflict counts a booking attempt lost to an overlapping reservation.
func IncConflict() {
	reservationConflicts.Inc()
}

// IncSlotRemoval counts a slot removal. Mode is "renumbered" or "forced".
func IncSlotRemoval(mode string) {
	slotRemovals.WithLabelValues(mode).Inc()
}

// IncExpiredHold counts a hold cancelled by the sweeper.
func IncExpiredHold() {
	expiredHolds.Inc()
}
