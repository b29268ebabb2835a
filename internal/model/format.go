package model

import "time"

// DisplayLayout is a medium date with a short time, e.g. "Mar 14, 2025, 9:00 AM".
const DisplayLayout = "Jan 2, 2006, 3:04 PM"

// FormatLocal renders an instant for people. Storage and the API always
// use the absolute instant; this string is display-only.
func FormatLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DisplayLayout)
}
