package sla

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// DB is the subset of pgx used by this package.
type DB interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

const scheduleEntriesSQL = `select id, schedule_id, coalesce(name, ''), coalesce(repeat_kind, ''), start_date, day, month
from schedule_entries where schedule_id = any($1) order by id`

// DBSource reads holiday entries from the schedule_entries table.
type DBSource struct {
	DB          DB
	ScheduleIDs []int64
	Timeout     time.Duration
}

// Entries implements Source.
func (s DBSource) Entries(ctx context.Context) ([]ScheduleEntry, error) {
	if s.DB == nil {
		return nil, errors.New("schedule store not configured")
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	rows, err := s.DB.Query(ctx, scheduleEntriesSQL, s.ScheduleIDs)
	if err != nil {
		return nil, fmt.Errorf("query schedule entries: %w", err)
	}
	defer rows.Close()
	out := []ScheduleEntry{}
	for rows.Next() {
		var e ScheduleEntry
		if err := rows.Scan(&e.ID, &e.ScheduleID, &e.Name, &e.RepeatKind, &e.StartDate, &e.Day, &e.Month); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read schedule entries: %w", err)
	}
	return out, nil
}

// DefaultHolidayKey is the Redis key RedisSource shares entries under.
const DefaultHolidayKey = "sla:holiday_entries"

// RedisSource shares the entries of Next between processes through Redis.
// Redis problems are logged and fall through to Next.
type RedisSource struct {
	Client *redis.Client
	Next   Source
	Key    string
	TTL    time.Duration
}

// Entries implements Source.
func (s RedisSource) Entries(ctx context.Context) ([]ScheduleEntry, error) {
	if s.Client == nil {
		return s.Next.Entries(ctx)
	}
	key := s.Key
	if key == "" {
		key = DefaultHolidayKey
	}
	b, err := s.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entries []ScheduleEntry
		if jerr := json.Unmarshal(b, &entries); jerr == nil {
			return entries, nil
		}
		logger(ctx).Warn().Str("key", key).Msg("discarding undecodable holiday entries")
	case !errors.Is(err, redis.Nil):
		logger(ctx).Warn().Err(err).Str("key", key).Msg("redis holiday lookup")
	}
	entries, err := s.Next.Entries(ctx)
	if err != nil {
		return nil, err
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultHolidayTTL
	}
	if b, err := json.Marshal(entries); err == nil {
		if err := s.Client.Set(ctx, key, b, ttl).Err(); err != nil {
			logger(ctx).Warn().Err(err).Str("key", key).Msg("redis holiday store")
		}
	}
	return entries, nil
}
