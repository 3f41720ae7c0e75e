package sla

import (
	"context"
	"time"
)

// Engine ties the calendar, the holiday store and a clock together.
type Engine struct {
	Calendar *Calendar
	Holidays *HolidayStore
	// Now is the end instant for open tickets.
	Now func() time.Time
}

// NewEngine returns an Engine reading wall-clock time. store may be nil, in
// which case no holidays apply.
func NewEngine(cal *Calendar, store *HolidayStore) *Engine {
	return &Engine{Calendar: cal, Holidays: store, Now: time.Now}
}

// CurrentHolidays returns the holiday snapshot the engine computes with.
func (e *Engine) CurrentHolidays(ctx context.Context) Holidays {
	if e.Holidays == nil {
		return Holidays{}
	}
	return e.Holidays.Load(ctx)
}

// ElapsedBusinessHours between two instants.
func (e *Engine) ElapsedBusinessHours(ctx context.Context, start, end time.Time) float64 {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return 0
	}
	return e.Calendar.ElapsedHours(start, end, e.CurrentHolidays(ctx))
}

// EvaluateOpenTicket measures an open ticket up to Now. Repeated calls differ
// as time passes.
func (e *Engine) EvaluateOpenTicket(ctx context.Context, createdAt time.Time, grace float64) OpenState {
	return EvaluateOpen(e.ElapsedBusinessHours(ctx, createdAt, e.Now()), grace)
}

// EvaluateClosedTicket measures a resolved ticket. A zero closedAt counts as
// no elapsed time.
func (e *Engine) EvaluateClosedTicket(ctx context.Context, createdAt, closedAt time.Time, grace float64) ClosedState {
	return EvaluateClosed(e.ElapsedBusinessHours(ctx, createdAt, closedAt), grace)
}
