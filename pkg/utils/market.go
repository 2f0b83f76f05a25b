package utils

import (
	"time"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

const (
	marketOpenMinutes  = 9*60 + 15
	marketCloseMinutes = 15*60 + 30
)

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// IsMarketOpen reports whether the cash market is in its regular session at t.
func IsMarketOpen(t time.Time) bool {
	now := t.In(IndiaLocation)
	if isWeekend(now) {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= marketOpenMinutes && minutes < marketCloseMinutes
}

// LastSessionDate returns the date of the most recent completed trading
// session as of t. Exchange holidays are not modelled.
func LastSessionDate(t time.Time) time.Time {
	now := t.In(IndiaLocation)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, IndiaLocation)
	if now.Hour()*60+now.Minute() < marketCloseMinutes {
		day = day.AddDate(0, 0, -1)
	}
	for isWeekend(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// IsFresh reports whether data whose last candle is at last covers the
// most recent completed session as of now.
func IsFresh(last, now time.Time) bool {
	session := LastSessionDate(now)
	l := last.In(IndiaLocation)
	lastDay := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, IndiaLocation)
	return !lastDay.Before(session)
}
