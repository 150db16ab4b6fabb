package database

import "errors"

// Expected failure modes are sentinels so callers can branch with
// errors.Is; anything else coming out of this package is a wrapped
// persistence error.
var (
	// Validation
	ErrInvalidInterval = errors.New("reservation end must be after start")
	ErrPastStart       = errors.New("reservation start is in the past")
	ErrTooFarAhead     = errors.New("reservation start is too far in the future")
	ErrNotOwner        = errors.New("vehicle does not belong to user")
	ErrTooLong         = errors.New("reservation exceeds space max duration")
	ErrOutsideHours    = errors.New("interval is outside operating hours")

	// Conflict
	ErrNotAvailable       = errors.New("slot is not available for the interval")
	ErrActiveReservations = errors.New("slot has processing reservations")
	ErrAlreadyCompleted   = errors.New("reservation is already complete")
	ErrAlreadyCancelled   = errors.New("reservation is already cancelled")
	ErrNotPayable         = errors.New("only processing reservations can be paid")

	// Missing rows
	ErrSpaceNotFound       = errors.New("parking space not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrVehicleNotFound     = errors.New("vehicle not found")
	ErrReservationNotFound = errors.New("reservation not found")

	// Concurrency / integrity
	ErrConcurrentModification = errors.New("concurrent modification detected")
)
