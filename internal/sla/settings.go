package sla

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Settings describes the business calendar and holiday cache as configured
// through the environment.
type Settings struct {
	Timezone    string
	DayStart    string
	DayEnd      string
	ScheduleIDs []int64
	HolidayTTL  time.Duration
}

// SettingsFromEnv reads SLA_TIMEZONE, SLA_DAY_START, SLA_DAY_END,
// HOLIDAY_SCHEDULE_IDS and HOLIDAY_TTL.
func SettingsFromEnv() Settings {
	s := Settings{
		Timezone:    getEnv("SLA_TIMEZONE", "Local"),
		DayStart:    getEnv("SLA_DAY_START", DefaultWorkWeek.Start.String()),
		DayEnd:      getEnv("SLA_DAY_END", DefaultWorkWeek.End.String()),
		ScheduleIDs: ParseScheduleIDs(getEnv("HOLIDAY_SCHEDULE_IDS", "1,2")),
		HolidayTTL:  DefaultHolidayTTL,
	}
	if d, err := time.ParseDuration(getEnv("HOLIDAY_TTL", "")); err == nil && d > 0 {
		s.HolidayTTL = d
	}
	return s
}

// Calendar builds the calendar described by s. Empty fields use the defaults.
func (s Settings) Calendar() (*Calendar, error) {
	week := DefaultWorkWeek
	if s.DayStart != "" {
		c, err := ParseClock(s.DayStart)
		if err != nil {
			return nil, err
		}
		week.Start = c
	}
	if s.DayEnd != "" {
		c, err := ParseClock(s.DayEnd)
		if err != nil {
			return nil, err
		}
		week.End = c
	}
	loc := time.Local
	if s.Timezone != "" {
		l, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", s.Timezone, err)
		}
		loc = l
	}
	return NewCalendar(week, loc)
}

// Engine builds the engine described by s. Holidays come from db when it is
// set, shared through rdb when that is set too.
func (s Settings) Engine(db DB, rdb *redis.Client, dbTimeout time.Duration) (*Engine, error) {
	cal, err := s.Calendar()
	if err != nil {
		return nil, err
	}
	var src Source
	if db != nil {
		src = DBSource{DB: db, ScheduleIDs: s.ScheduleIDs, Timeout: dbTimeout}
		if rdb != nil {
			src = RedisSource{Client: rdb, Next: src, TTL: s.HolidayTTL}
		}
	}
	return NewEngine(cal, NewHolidayStore(src, s.HolidayTTL)), nil
}

// ParseScheduleIDs parses a comma separated id list, skipping junk.
func ParseScheduleIDs(v string) []int64 {
	out := []int64{}
	for _, p := range strings.Split(v, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
