package models

import "time"

// Reservation books one slot for one vehicle over the half-open
// interval [StartAt, EndAt). Fee is fixed at creation time and never
// recomputed on status changes.
type Reservation struct {
	ID          int64     `json:"id"`
	SpaceID     string    `json:"space_id"`
	SlotOrdinal int       `json:"slot_ordinal"`
	VehicleID   string    `json:"vehicle_id"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	Status      string    `json:"status"` // processing, paid, complete, cancelled
	Fee         float64   `json:"fee"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
}

// Overlaps reports whether the reservation's interval intersects
// [start, end) under half-open semantics: touching boundaries do not
// overlap, so back-to-back bookings are allowed.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartAt.Before(end) && r.EndAt.After(start)
}

// Active reports whether the reservation still blocks its slot's interval.
func (r *Reservation) Active() bool {
	return r.Status == StatusProcessing || r.Status == StatusPaid
}
