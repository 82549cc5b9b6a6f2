package analytics

import (
	"time"

	"cloud.google.com/go/civil"
)

// serviceDayStartHour is when a new service day opens. The restaurant's
// business day runs from noon until 04:59:59 the next calendar day; every
// sale in that window belongs to the day it opened.
const serviceDayStartHour = 12

// ServiceDate maps a zone-converted timestamp to its service date. Any local
// hour before noon, including the 00:00-04:59 late-night window, belongs to
// the service day that opened the previous calendar day.
func ServiceDate(t time.Time) civil.Date {
	d := civil.DateOf(t)
	if t.Hour() >= serviceDayStartHour {
		return d
	}
	return d.AddDays(-1)
}

// hourOrder is the sort key for the by-hour view: the sequence starts at noon
// and wraps through 11:00, matching the nocturnal service cycle.
func hourOrder(hour int) int {
	if hour >= serviceDayStartHour {
		return hour
	}
	return hour + 24
}

// ServiceWindow returns the raw timestamp range covered by an inclusive
// service-date range: from noon on the first day until just before noon on
// the day after the last.
func ServiceWindow(start, end civil.Date, loc *time.Location) (time.Time, time.Time) {
	from := time.Date(start.Year, start.Month, start.Day, serviceDayStartHour, 0, 0, 0, loc)
	next := end.AddDays(1)
	to := time.Date(next.Year, next.Month, next.Day, serviceDayStartHour-1, 59, 59, 0, loc)
	return from, to
}
