package api

import "time"

// vienna is the display timezone of the upstream site. Resolved once; UTC is
// the fallback on systems without tzdata.
var vienna = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Vienna")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// formattedDate renders a timestamp as the compact day.month clock string
// shown on every page, e.g. "28.8. 14:05".
func formattedDate(t time.Time) string {
	return t.In(vienna).Format("2.1. 15:04")
}
