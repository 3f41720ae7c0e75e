package sla

import (
	"context"
)

// Policy represents an SLA policy.
type Policy struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	GracePeriodHours float64 `json:"grace_period_hours"`
}

// ListPolicies returns all SLA policies.
func ListPolicies(ctx context.Context, db DB) ([]Policy, error) {
	rows, err := db.Query(ctx, `select id::text, name, grace_period_hours from sla_policies order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Policy{}
	for rows.Next() {
		var p Policy
		if err := rows.Scan(&p.ID, &p.Name, &p.GracePeriodHours); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
