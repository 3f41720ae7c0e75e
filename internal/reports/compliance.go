package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mark3748/helpdesk-sla/internal/sla"
)

// GroupBy selects the compliance grouping key.
type GroupBy string

const (
	GroupAgent      GroupBy = "agent"
	GroupMonth      GroupBy = "month"
	GroupYear       GroupBy = "year"
	GroupDepartment GroupBy = "department"
)

// Unassigned labels tickets without an agent or department.
const Unassigned = "unassigned"

// ParseGroupBy validates a grouping name; empty means agent.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(s); g {
	case "":
		return GroupAgent, nil
	case GroupAgent, GroupMonth, GroupYear, GroupDepartment:
		return g, nil
	}
	return "", fmt.Errorf("unknown grouping %q", s)
}

// ComplianceRow summarizes closed tickets sharing one key.
type ComplianceRow struct {
	Key               string  `json:"key"`
	Total             int     `json:"total"`
	Compliant         int     `json:"compliant"`
	Violated          int     `json:"violated"`
	CompliancePercent float64 `json:"compliance_percent"`
	AvgBusinessHours  float64 `json:"avg_business_hours"`
	AvgResolution     string  `json:"avg_resolution,omitempty"`
	AvgFirstResponse  string  `json:"avg_first_response,omitempty"`
}

type bucket struct {
	row           ComplianceRow
	businessHours float64
	resolution    time.Duration
	response      time.Duration
	responses     int
}

// Compliance groups closed tickets and reports the share closed within grace.
// Rows are sorted by key.
func Compliance(ctx context.Context, eng *sla.Engine, tickets []TicketRecord, by GroupBy) []ComplianceRow {
	loc := eng.Calendar.Location
	if loc == nil {
		loc = time.Local
	}
	buckets := map[string]*bucket{}
	for _, t := range tickets {
		if t.Open() {
			continue
		}
		key := groupKey(t, by, loc)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{row: ComplianceRow{Key: key}}
			buckets[key] = b
		}
		st := eng.EvaluateClosedTicket(ctx, t.CreatedAt, *t.ClosedAt, t.GracePeriodHours)
		b.row.Total++
		if st.IsCompliant {
			b.row.Compliant++
		} else {
			b.row.Violated++
		}
		b.businessHours += st.ActualHours
		if d := t.ClosedAt.Sub(t.CreatedAt); d > 0 {
			b.resolution += d
		}
		if t.FirstResponseAt != nil && !t.FirstResponseAt.IsZero() {
			if d := t.FirstResponseAt.Sub(t.CreatedAt); d >= 0 {
				b.response += d
				b.responses++
			}
		}
	}
	out := make([]ComplianceRow, 0, len(buckets))
	for _, b := range buckets {
		r := b.row
		r.CompliancePercent = percent(r.Compliant, r.Total)
		r.AvgBusinessHours = sla.Round2(b.businessHours / float64(r.Total))
		r.AvgResolution = FormatDuration(b.resolution / time.Duration(r.Total))
		if b.responses > 0 {
			r.AvgFirstResponse = FormatDuration(b.response / time.Duration(b.responses))
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func groupKey(t TicketRecord, by GroupBy, loc *time.Location) string {
	switch by {
	case GroupMonth:
		return t.ClosedAt.In(loc).Format("2006-01")
	case GroupYear:
		return t.ClosedAt.In(loc).Format("2006")
	case GroupDepartment:
		if t.Department == "" {
			return Unassigned
		}
		return t.Department
	default:
		if t.Agent == "" {
			return Unassigned
		}
		return t.Agent
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return sla.Round1(float64(part) / float64(total) * 100)
}

// FormatDuration renders d as "Nd HH:MM" with 24-hour days, rounded to the
// nearest minute.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	mins := int64(d.Round(time.Minute) / time.Minute)
	return fmt.Sprintf("%dd %02d:%02d", mins/(24*60), (mins/60)%24, mins%60)
}
