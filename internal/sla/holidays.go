package sla

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultHolidayTTL is how long a loaded holiday snapshot stays fresh.
const DefaultHolidayTTL = time.Hour

// Schedule entry repeat kinds.
const (
	RepeatYearly = "yearly"
	RepeatNever  = "never"
)

// RecurringHoliday repeats every year on the same day and month.
type RecurringHoliday struct {
	Day   int        `json:"day"`
	Month time.Month `json:"month"`
	Name  string     `json:"name"`
}

// SpecificHoliday falls on one exact date.
type SpecificHoliday struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
	Name  string     `json:"name"`
}

// Holidays is an immutable snapshot of the holiday calendar.
type Holidays struct {
	Recurring []RecurringHoliday `json:"recurring"`
	Specific  []SpecificHoliday  `json:"specific"`
}

// Contains reports whether the date matches any recurring or specific entry.
func (h Holidays) Contains(year int, month time.Month, day int) bool {
	for _, r := range h.Recurring {
		if r.Day == day && r.Month == month {
			return true
		}
	}
	for _, s := range h.Specific {
		if s.Year == year && s.Month == month && s.Day == day {
			return true
		}
	}
	return false
}

// ScheduleEntry is one row of the external schedule store.
type ScheduleEntry struct {
	ID         int64      `json:"id"`
	ScheduleID int64      `json:"schedule_id"`
	Name       string     `json:"name"`
	RepeatKind string     `json:"repeat_kind"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	Day        *int       `json:"day,omitempty"`
	Month      *int       `json:"month,omitempty"`
}

// BuildHolidays sorts schedule entries into recurring and specific holidays.
// Entries that fit neither shape are skipped. A specific holiday is the
// calendar date of StartDate as stored, with no zone conversion: date columns
// scan as UTC midnight.
func BuildHolidays(entries []ScheduleEntry) Holidays {
	h := Holidays{Recurring: []RecurringHoliday{}, Specific: []SpecificHoliday{}}
	for _, e := range entries {
		switch e.RepeatKind {
		case RepeatYearly:
			if e.Day == nil || e.Month == nil {
				continue
			}
			if *e.Month < 1 || *e.Month > 12 || *e.Day < 1 || *e.Day > 31 {
				continue
			}
			h.Recurring = append(h.Recurring, RecurringHoliday{Day: *e.Day, Month: time.Month(*e.Month), Name: e.Name})
		case RepeatNever:
			if e.StartDate == nil || e.StartDate.IsZero() {
				continue
			}
			d := *e.StartDate
			h.Specific = append(h.Specific, SpecificHoliday{Year: d.Year(), Month: d.Month(), Day: d.Day(), Name: e.Name})
		}
	}
	return h
}

// Source fetches raw schedule entries.
type Source interface {
	Entries(ctx context.Context) ([]ScheduleEntry, error)
}

type holidaySnapshot struct {
	holidays Holidays
	loadedAt time.Time
}

// HolidayStore caches the holiday calendar for a TTL. The snapshot is swapped
// atomically; concurrent refreshes may both hit the source and the last one
// wins.
type HolidayStore struct {
	src  Source
	ttl  time.Duration
	snap atomic.Pointer[holidaySnapshot]

	// Now is the staleness clock; tests replace it.
	Now func() time.Time
}

// NewHolidayStore returns a store over src. A non-positive ttl uses
// DefaultHolidayTTL.
func NewHolidayStore(src Source, ttl time.Duration) *HolidayStore {
	if ttl <= 0 {
		ttl = DefaultHolidayTTL
	}
	return &HolidayStore{src: src, ttl: ttl, Now: time.Now}
}

// Load returns the cached snapshot, reloading it from the source once it is
// older than the TTL. Source failures are logged and yield an empty set.
func (s *HolidayStore) Load(ctx context.Context) Holidays {
	if snap := s.snap.Load(); snap != nil && s.Now().Sub(snap.loadedAt) < s.ttl {
		return snap.holidays
	}
	return s.Refresh(ctx)
}

// Refresh reloads from the source regardless of age. A failed load is not
// cached, so the next call retries.
func (s *HolidayStore) Refresh(ctx context.Context) Holidays {
	if s.src == nil {
		return Holidays{}
	}
	entries, err := s.src.Entries(ctx)
	if err != nil {
		logger(ctx).Error().Err(err).Msg("load holidays; continuing without holidays")
		return Holidays{}
	}
	h := BuildHolidays(entries)
	s.snap.Store(&holidaySnapshot{holidays: h, loadedAt: s.Now()})
	return h
}

// logger prefers the request-scoped logger and falls back to the global one.
func logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
