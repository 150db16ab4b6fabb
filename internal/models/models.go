package models

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// ParkingSpace is a marketplace listing subdivided into numbered slots.
// SlotCount must always equal the number of live slot rows for the space.
type ParkingSpace struct {
	ID               string    `json:"id" yaml:"id"`
	Code             string    `json:"code" yaml:"code"`
	Address          string    `json:"address" yaml:"address"`
	HourlyRate       float64   `json:"hourly_rate" yaml:"hourly_rate"`
	SlotCount        int       `json:"slot_count" yaml:"slot_count"`
	MaxDurationHours null.Int  `json:"max_duration_hours,omitempty" yaml:"-"`
	Description      string    `json:"description,omitempty" yaml:"description"`
	OwnerAdminID     int64     `json:"owner_admin_id" yaml:"owner_admin_id"`
	CreatedAt        time.Time `json:"created_at" yaml:"-"`
	UpdatedAt        time.Time `json:"updated_at" yaml:"-"`
}

// Vehicle is owned by exactly one user and referenced by reservations.
type Vehicle struct {
	Plate       string    `json:"plate"`
	OwnerID     int64     `json:"owner_id"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ScheduleWindow is one weekday's operating window for a space.
// Open and Close are minutes from midnight; Close is exclusive.
type ScheduleWindow struct {
	SpaceID string `json:"space_id"`
	Weekday int    `json:"weekday"` // time.Weekday: 0 = Sunday
	Open    int    `json:"open"`
	Close   int    `json:"close"`
}

// ReservedInterval is the read-side projection of an active reservation
// used by the availability calendar.
type ReservedInterval struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status"`
}

// CalendarDay lists the reserved intervals of one slot on one date.
type CalendarDay struct {
	Date     string             `json:"date"`
	Reserved []ReservedInterval `json:"reserved"`
}
