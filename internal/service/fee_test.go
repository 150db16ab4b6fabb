package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBillableHours(t *testing.T) {
	base := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		duration time.Duration
		want     int
	}{
		{"HalfHourBillsAsOne", 30 * time.Minute, 1},
		{"ExactHour", time.Hour, 1},
		{"HourAndMinuteRoundsUp", 61 * time.Minute, 2},
		{"TwoHours", 2 * time.Hour, 2},
		{"TwoHoursOneMinute", 2*time.Hour + time.Minute, 3},
		{"FullDay", 24 * time.Hour, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BillableHours(base, base.Add(tt.duration)))
		})
	}
}

func TestCalculateFee(t *testing.T) {
	base := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 150.0, CalculateFee(150, base, base.Add(time.Hour)))
	assert.Equal(t, 300.0, CalculateFee(150, base, base.Add(90*time.Minute)))
	assert.Equal(t, 150.0, CalculateFee(150, base, base.Add(10*time.Minute)))
	assert.Equal(t, 0.0, CalculateFee(0, base, base.Add(time.Hour)))
}

func TestCalculateFee_Monotonic(t *testing.T) {
	base := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	prev := 0.0
	for m := 15; m <= 8*60; m += 15 {
		fee := CalculateFee(100, base, base.Add(time.Duration(m)*time.Minute))
		assert.GreaterOrEqual(t, fee, prev, "fee must not drop as the interval grows (%d min)", m)
		prev = fee
	}
}
