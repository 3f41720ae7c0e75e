package reports

import (
	"context"
	"sort"
	"time"

	"github.com/mark3748/helpdesk-sla/internal/sla"
)

// TicketRecord is the slice of a ticket the SLA reports need.
type TicketRecord struct {
	ID               string     `json:"id"`
	Agent            string     `json:"agent"`
	Department       string     `json:"department"`
	CreatedAt        time.Time  `json:"created_at"`
	FirstResponseAt  *time.Time `json:"first_response_at,omitempty"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	GracePeriodHours float64    `json:"grace_period_hours"`
}

// Open reports whether the ticket has no closing instant.
func (t TicketRecord) Open() bool { return t.ClosedAt == nil || t.ClosedAt.IsZero() }

// RiskRecord is the per-ticket output for open tickets.
type RiskRecord struct {
	TicketID   string `json:"ticketId"`
	Agent      string `json:"agente,omitempty"`
	Department string `json:"departamento,omitempty"`
	sla.OpenState
	Tier sla.Tier `json:"nivel"`
}

// ClosedRecord is the per-ticket compliance output for closed tickets.
type ClosedRecord struct {
	TicketID   string    `json:"ticketId"`
	Agent      string    `json:"agente,omitempty"`
	Department string    `json:"departamento,omitempty"`
	ClosedAt   time.Time `json:"cerrado"`
	sla.ClosedState
}

// RiskRecords evaluates every open ticket, most consumed first.
func RiskRecords(ctx context.Context, eng *sla.Engine, tickets []TicketRecord) []RiskRecord {
	out := []RiskRecord{}
	for _, t := range tickets {
		if !t.Open() {
			continue
		}
		st := eng.EvaluateOpenTicket(ctx, t.CreatedAt, t.GracePeriodHours)
		out = append(out, RiskRecord{
			TicketID:   t.ID,
			Agent:      t.Agent,
			Department: t.Department,
			OpenState:  st,
			Tier:       st.Tier(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PercentConsumed > out[j].PercentConsumed })
	return out
}

// ClosedRecords evaluates every closed ticket in input order.
func ClosedRecords(ctx context.Context, eng *sla.Engine, tickets []TicketRecord) []ClosedRecord {
	out := []ClosedRecord{}
	for _, t := range tickets {
		if t.Open() {
			continue
		}
		out = append(out, ClosedRecord{
			TicketID:    t.ID,
			Agent:       t.Agent,
			Department:  t.Department,
			ClosedAt:    *t.ClosedAt,
			ClosedState: eng.EvaluateClosedTicket(ctx, t.CreatedAt, *t.ClosedAt, t.GracePeriodHours),
		})
	}
	return out
}
