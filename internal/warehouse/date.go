package warehouse

import (
	"fmt"
	"time"
)

// DateDimension is one row of dim_date, fully derived from a calendar date.
type DateDimension struct {
	DateKey   int
	FullDate  string
	Year      int
	Month     int
	Day       int
	Quarter   string
	DayOfWeek string
	IsWeekend bool
}

// DeriveDate computes the dim_date attributes for t. The date key is the
// YYYYMMDD integer form, so the same calendar date always maps to the same
// row.
func DeriveDate(t time.Time) DateDimension {
	year, month, day := t.Date()
	weekday := t.Weekday()
	return DateDimension{
		DateKey:   year*10000 + int(month)*100 + day,
		FullDate:  t.Format("2006-01-02"),
		Year:      year,
		Month:     int(month),
		Day:       day,
		Quarter:   fmt.Sprintf("Q%d", (int(month)+2)/3),
		DayOfWeek: weekday.String(),
		IsWeekend: weekday == time.Saturday || weekday == time.Sunday,
	}
}
