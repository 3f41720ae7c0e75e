package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mark3748/helpdesk-sla/internal/jobs"
	"github.com/mark3748/helpdesk-sla/internal/reports"
	"github.com/mark3748/helpdesk-sla/internal/sla"
)

func (w *worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.sweep(ctx); err != nil {
				log.Error().Err(err).Msg("sla sweep")
			}
		}
	}
}

// alertTier is the tier an open ticket is alerted under, or "" for none.
// IsOverdue wins over the percentage so zero-grace tickets still alert.
func alertTier(r reports.RiskRecord) sla.Tier {
	switch {
	case r.IsOverdue || r.Tier == sla.TierOverdue:
		return sla.TierOverdue
	case r.Tier == sla.TierCritical:
		return sla.TierCritical
	}
	return ""
}

// sweep evaluates every open ticket and queues one alert per ticket and tier
// within the dedupe window. It returns the number of alerts queued.
func (w *worker) sweep(ctx context.Context) (int, error) {
	tickets, err := w.tickets.Tickets(ctx, reports.Filter{OpenOnly: true})
	if err != nil {
		return 0, err
	}
	now := w.eng.Now()
	sent := 0
	for _, r := range reports.RiskRecords(ctx, w.eng, tickets) {
		tier := alertTier(r)
		if tier == "" {
			continue
		}
		key := jobs.AlertKey(r.TicketID, tier)
		fresh, err := w.rdb.SetNX(ctx, key, now.UTC().Format(time.RFC3339), w.cfg.AlertDedupe).Result()
		if err != nil {
			return sent, err
		}
		if !fresh {
			continue
		}
		alert := jobs.Alert{TicketID: r.TicketID, Agent: r.Agent, Department: r.Department, Tier: tier, State: r.OpenState, At: now}
		if err := jobs.Push(ctx, w.rdb, w.cfg.AlertQueue, jobs.TypeAlert, alert); err != nil {
			// release the dedupe key so the next sweep retries
			if derr := w.rdb.Del(context.WithoutCancel(ctx), key).Err(); derr != nil {
				log.Error().Err(derr).Str("key", key).Msg("release alert dedupe key")
			}
			return sent, err
		}
		sent++
		log.Warn().Str("ticket", r.TicketID).Str("tier", string(tier)).
			Float64("elapsed_hours", r.ElapsedHours).Float64("percent", r.PercentConsumed).
			Msg("sla alert")
	}
	return sent, nil
}
