package service

import (
	"math"
	"time"

	"parkmarket/internal/models"
)

// CalculateFee prices the half-open interval [start, end) at the given
// hourly rate. Partial hours round up and anything under an hour bills
// as a full hour. Pure and deterministic; interval validity is the
// caller's job.
func CalculateFee(hourlyRate float64, start, end time.Time) float64 {
	return hourlyRate * float64(BillableHours(start, end))
}

// BillableHours returns ceil(duration in minutes / 60) with a floor of one.
func BillableHours(start, end time.Time) int {
	minutes := end.Sub(start).Minutes()
	hours := int(math.Ceil(minutes / 60))
	if hours < models.MinFeeHours {
		hours = models.MinFeeHours
	}
	return hours
}
