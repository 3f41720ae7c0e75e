package sla

import (
	"iter"
	"math"
	"strings"
	"time"
)

// Window is the business-hours slice of a single working day that falls
// between two instants.
type Window struct {
	Day  time.Time
	From time.Time
	To   time.Time
}

// Duration of the window.
func (w Window) Duration() time.Duration { return w.To.Sub(w.From) }

// Windows yields one Window per working day between start and end. Non-working
// days and days without overlap yield nothing. Zero instants or start >= end
// yield an empty sequence.
func (c *Calendar) Windows(start, end time.Time, h Holidays) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		if start.IsZero() || end.IsZero() || !start.Before(end) {
			return
		}
		end = end.In(c.location())
		ptr := c.snap(start, end, h)
		if !ptr.Before(end) {
			return
		}
		last := c.date(end)
		for day := c.date(ptr); !day.After(last); day = c.nextDate(day) {
			if !c.IsWorkingDay(day, h) {
				continue
			}
			from := latest(ptr, c.DayStart(day))
			to := earliest(end, c.DayEnd(day))
			if to.After(from) {
				if !yield(Window{Day: day, From: from, To: to}) {
					return
				}
			}
			ptr = c.DayStart(c.nextDate(day))
		}
	}
}

// snap moves t forward to the next instant inside business hours. It stops
// early once it reaches limit so a calendar without reachable working days
// cannot spin forever.
func (c *Calendar) snap(t, limit time.Time, h Holidays) time.Time {
	t = t.In(c.location())
	for t.Before(limit) {
		if !c.IsWorkingDay(t, h) {
			t = c.DayStart(c.nextDate(t))
			continue
		}
		if ds := c.DayStart(t); t.Before(ds) {
			return ds
		}
		if !t.Before(c.DayEnd(t)) {
			t = c.DayStart(c.nextDate(t))
			continue
		}
		return t
	}
	return t
}

// ElapsedHours sums the business hours between start and end, rounded to two
// decimals. It never fails: unusable input yields 0.
func (c *Calendar) ElapsedHours(start, end time.Time, h Holidays) float64 {
	var total time.Duration
	for w := range c.Windows(start, end, h) {
		total += w.Duration()
	}
	return Round2(total.Hours())
}

// ElapsedHoursString is ElapsedHours over textual timestamps. Anything that
// does not parse counts as no time elapsed.
func (c *Calendar) ElapsedHoursString(start, end string, h Holidays) float64 {
	s, ok := c.ParseInstant(start)
	if !ok {
		return 0
	}
	e, ok := c.ParseInstant(end)
	if !ok {
		return 0
	}
	return c.ElapsedHours(s, e, h)
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseInstant accepts RFC 3339 and the zone-less layouts ticket exports
// commonly use. Zone-less values are read in the calendar location.
func (c *Calendar) ParseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, c.location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// Round1 rounds half away from zero to one decimal.
func Round1(v float64) float64 { return math.Round(v*10) / 10 }

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
