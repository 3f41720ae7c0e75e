package reports

import (
	"context"
	"sort"

	"github.com/mark3748/helpdesk-sla/internal/sla"
)

// DefaultTrendMonths is how many months of compliance trend Alerts returns.
const DefaultTrendMonths = 6

// AgentAlerts is one agent's open-ticket risk profile plus closed compliance.
type AgentAlerts struct {
	Agent             string  `json:"agent"`
	Open              int     `json:"open"`
	AtRisk            int     `json:"at_risk"`
	Critical          int     `json:"critical"`
	Overdue           int     `json:"overdue"`
	Closed            int     `json:"closed"`
	CompliancePercent float64 `json:"compliance_percent"`
}

// TrendPoint is monthly compliance.
type TrendPoint struct {
	Month             string  `json:"month"`
	Total             int     `json:"total"`
	Compliant         int     `json:"compliant"`
	CompliancePercent float64 `json:"compliance_percent"`
}

// AlertReport buckets open tickets by tier. Within-SLA tickets only show up in
// the agent counts.
type AlertReport struct {
	Overdue  []RiskRecord  `json:"overdue"`
	Critical []RiskRecord  `json:"critical"`
	AtRisk   []RiskRecord  `json:"at_risk"`
	Agents   []AgentAlerts `json:"agents"`
	Trend    []TrendPoint  `json:"trend"`
}

// Alerts builds the alert buckets, agent performance and the last trendMonths
// months of compliance. A non-positive trendMonths uses DefaultTrendMonths.
func Alerts(ctx context.Context, eng *sla.Engine, tickets []TicketRecord, trendMonths int) AlertReport {
	if trendMonths <= 0 {
		trendMonths = DefaultTrendMonths
	}
	rep := AlertReport{Overdue: []RiskRecord{}, Critical: []RiskRecord{}, AtRisk: []RiskRecord{}, Agents: []AgentAlerts{}, Trend: []TrendPoint{}}
	agents := map[string]*AgentAlerts{}
	agent := func(name string) *AgentAlerts {
		if name == "" {
			name = Unassigned
		}
		a, ok := agents[name]
		if !ok {
			a = &AgentAlerts{Agent: name}
			agents[name] = a
		}
		return a
	}

	for _, r := range RiskRecords(ctx, eng, tickets) {
		a := agent(r.Agent)
		a.Open++
		switch r.Tier {
		case sla.TierOverdue:
			rep.Overdue = append(rep.Overdue, r)
			a.Overdue++
		case sla.TierCritical:
			rep.Critical = append(rep.Critical, r)
			a.Critical++
		case sla.TierAtRisk:
			rep.AtRisk = append(rep.AtRisk, r)
			a.AtRisk++
		}
	}
	for _, row := range Compliance(ctx, eng, tickets, GroupAgent) {
		a := agent(row.Key)
		a.Closed = row.Total
		a.CompliancePercent = row.CompliancePercent
	}
	for _, a := range agents {
		rep.Agents = append(rep.Agents, *a)
	}
	sort.Slice(rep.Agents, func(i, j int) bool {
		x, y := rep.Agents[i], rep.Agents[j]
		if x.Overdue != y.Overdue {
			return x.Overdue > y.Overdue
		}
		if x.Critical != y.Critical {
			return x.Critical > y.Critical
		}
		if x.AtRisk != y.AtRisk {
			return x.AtRisk > y.AtRisk
		}
		return x.Agent < y.Agent
	})

	months := Compliance(ctx, eng, tickets, GroupMonth)
	if len(months) > trendMonths {
		months = months[len(months)-trendMonths:]
	}
	for _, m := range months {
		rep.Trend = append(rep.Trend, TrendPoint{Month: m.Key, Total: m.Total, Compliant: m.Compliant, CompliancePercent: m.CompliancePercent})
	}
	return rep
}
