package utils

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// MinutesOfDay converts an "HH:mm" string to minutes since midnight.
func MinutesOfDay(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:mm", hhmm)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

// Today returns the calendar day of now in loc as YYYY-MM-DD.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}
