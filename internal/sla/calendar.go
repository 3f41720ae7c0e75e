package sla

import "time"

// Calendar evaluates business time for one fixed work week in one location.
type Calendar struct {
	Week     WorkWeek
	Location *time.Location
}

// NewCalendar validates week and returns a Calendar. A nil location means time.Local.
func NewCalendar(week WorkWeek, loc *time.Location) (*Calendar, error) {
	if err := week.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{Week: week, Location: loc}, nil
}

func (c *Calendar) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// IsHoliday reports whether the calendar date of t matches any recurring or
// specific holiday.
func (c *Calendar) IsHoliday(t time.Time, h Holidays) bool {
	d := t.In(c.location())
	return h.Contains(d.Year(), d.Month(), d.Day())
}

// IsWorkingDay is false on non-working weekdays and on holidays.
func (c *Calendar) IsWorkingDay(t time.Time, h Holidays) bool {
	d := t.In(c.location())
	if !c.Week.works(d.Weekday()) {
		return false
	}
	return !c.IsHoliday(d, h)
}

// DayStart returns t's date at the work week start time.
func (c *Calendar) DayStart(t time.Time) time.Time { return c.at(t, c.Week.Start) }

// DayEnd returns t's date at the work week end time.
func (c *Calendar) DayEnd(t time.Time) time.Time { return c.at(t, c.Week.End) }

func (c *Calendar) at(t time.Time, clk Clock) time.Time {
	loc := c.location()
	d := t.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), clk.Hour, clk.Minute, 0, 0, loc)
}

// midnight of the following calendar date; time.Date normalizes month/year rollover.
func (c *Calendar) nextDate(t time.Time) time.Time {
	loc := c.location()
	d := t.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
}

func (c *Calendar) date(t time.Time) time.Time {
	loc := c.location()
	d := t.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}
