package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Filter narrows the tickets a report covers. From and To bound closed_at for
// ClosedOnly filters, matching how closed reports are grouped, and created_at
// otherwise.
type Filter struct {
	From       *time.Time
	To         *time.Time
	Agent      string
	Department string
	OpenOnly   bool
	ClosedOnly bool
}

// TicketSource supplies ticket records.
type TicketSource interface {
	Tickets(ctx context.Context, f Filter) ([]TicketRecord, error)
}

// DB is the subset of pgx used to read tickets.
type DB interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PGTickets reads tickets joined with their SLA policy, agent and department.
type PGTickets struct {
	DB      DB
	Timeout time.Duration
}

const ticketsSQL = `select t.id::text, coalesce(a.name, ''), coalesce(d.name, ''), t.created_at,
       t.first_response_at, t.closed_at, coalesce(sp.grace_period_hours, 0)
from tickets t
left join agents a on a.id = t.agent_id
left join departments d on d.id = t.department_id
left join sla_policies sp on sp.id = t.sla_policy_id`

// Tickets implements TicketSource.
func (p PGTickets) Tickets(ctx context.Context, f Filter) ([]TicketRecord, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	q, args := buildTicketsQuery(f)
	rows, err := p.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()
	out := []TicketRecord{}
	for rows.Next() {
		var t TicketRecord
		if err := rows.Scan(&t.ID, &t.Agent, &t.Department, &t.CreatedAt, &t.FirstResponseAt, &t.ClosedAt, &t.GracePeriodHours); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read tickets: %w", err)
	}
	return out, nil
}

func buildTicketsQuery(f Filter) (string, []any) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	col := "t.created_at"
	if f.ClosedOnly {
		col = "t.closed_at"
	}
	if f.From != nil {
		add(col+" >= $%d", *f.From)
	}
	if f.To != nil {
		add(col+" < $%d", *f.To)
	}
	if f.Agent != "" {
		add("a.name = $%d", f.Agent)
	}
	if f.Department != "" {
		add("d.name = $%d", f.Department)
	}
	if f.OpenOnly {
		where = append(where, "t.closed_at is null")
	}
	if f.ClosedOnly {
		where = append(where, "t.closed_at is not null")
	}
	q := ticketsSQL
	if len(where) > 0 {
		q += "\nwhere " + strings.Join(where, " and ")
	}
	return q + "\norder by t.created_at", args
}
