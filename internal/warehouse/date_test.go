package warehouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveDate(t *testing.T) {
	testCases := []struct {
		name     string
		input    time.Time
		expected DateDimension
	}{
		{
			name:  "weekday",
			input: time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC),
			expected: DateDimension{
				DateKey:   20250314,
				FullDate:  "2025-03-14",
				Year:      2025,
				Month:     3,
				Day:       14,
				Quarter:   "Q1",
				DayOfWeek: "Friday",
				IsWeekend: false,
			},
		},
		{
			name:  "weekend",
			input: time.Date(2025, 12, 27, 0, 0, 0, 0, time.UTC),
			expected: DateDimension{
				DateKey:   20251227,
				FullDate:  "2025-12-27",
				Year:      2025,
				Month:     12,
				Day:       27,
				Quarter:   "Q4",
				DayOfWeek: "Saturday",
				IsWeekend: true,
			},
		},
		{
			name:  "quarter boundary",
			input: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
			expected: DateDimension{
				DateKey:   20241001,
				FullDate:  "2024-10-01",
				Year:      2024,
				Month:     10,
				Day:       1,
				Quarter:   "Q4",
				DayOfWeek: "Tuesday",
				IsWeekend: false,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DeriveDate(tc.input))
		})
	}
}

func TestDeriveDateIgnoresTimeOfDay(t *testing.T) {
	morning := DeriveDate(time.Date(2025, 6, 1, 0, 0, 1, 0, time.UTC))
	evening := DeriveDate(time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, morning, evening)
}
