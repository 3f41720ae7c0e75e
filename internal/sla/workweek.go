package sla

import (
	"errors"
	"fmt"
	"time"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) offset() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute
}

// valid allows 00:00 through 24:00.
func (c Clock) valid() bool {
	if c.Hour < 0 || c.Hour > 24 || c.Minute < 0 || c.Minute > 59 {
		return false
	}
	return c.Hour < 24 || c.Minute == 0
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// WorkWeek is the single daily business window shared by every working day.
type WorkWeek struct {
	Start Clock
	End   Clock
	Days  []time.Weekday
}

// DefaultWorkWeek is 08:30-17:30, Monday through Friday.
var DefaultWorkWeek = WorkWeek{
	Start: Clock{Hour: 8, Minute: 30},
	End:   Clock{Hour: 17, Minute: 30},
	Days:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
}

// Validate reports whether the window is usable.
func (w WorkWeek) Validate() error {
	if !w.Start.valid() || !w.End.valid() {
		return fmt.Errorf("work week: clock out of range %s-%s", w.Start, w.End)
	}
	if w.Start.offset() >= w.End.offset() {
		return fmt.Errorf("work week: start %s must be before end %s", w.Start, w.End)
	}
	if len(w.Days) == 0 {
		return errors.New("work week: no working days")
	}
	return nil
}

// DayLength is End minus Start.
func (w WorkWeek) DayLength() time.Duration { return w.End.offset() - w.Start.offset() }

func (w WorkWeek) works(d time.Weekday) bool {
	for _, wd := range w.Days {
		if wd == d {
			return true
		}
	}
	return false
}
