package valuation

import (
	"fmt"
	"strings"
	"time"
)

// HoldingPeriod renders the span between purchase and close as a short
// human-readable duration: days under a month, months (plus leftover days)
// under a year, then years plus months. Buckets use 30-day months and
// 365-day years.
func HoldingPeriod(purchase, closed time.Time) string {
	d := daysBetween(purchase, closed)

	switch {
	case d <= 0:
		return "0 days"
	case d < 30:
		return plural(d, "day")
	case d < 365:
		s := plural(d/30, "month")
		if d%30 > 0 {
			s += " " + plural(d%30, "day")
		}
		return s
	default:
		s := plural(d/365, "year")
		if months := (d % 365) / 30; months > 0 {
			s += " " + plural(months, "month")
		}
		return s
	}
}

// daysBetween counts whole calendar days between two instants, ignoring
// time-of-day and zone.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

func plural(n int, unit string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", n, unit)
	if n != 1 {
		b.WriteString("s")
	}
	return b.String()
}
