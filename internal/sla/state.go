package sla

import "math"

// Tier buckets an open ticket by how much of its grace period is used.
type Tier string

const (
	TierWithin   Tier = "within_sla"
	TierAtRisk   Tier = "at_risk"
	TierCritical Tier = "critical"
	TierOverdue  Tier = "overdue"
)

// Tier thresholds in percent of grace consumed. Each tier includes its lower
// bound.
const (
	AtRiskPercent   = 70.0
	CriticalPercent = 90.0
	OverduePercent  = 100.0
)

// TierFor classifies a consumed percentage.
func TierFor(percent float64) Tier {
	switch {
	case percent >= OverduePercent:
		return TierOverdue
	case percent >= CriticalPercent:
		return TierCritical
	case percent >= AtRiskPercent:
		return TierAtRisk
	default:
		return TierWithin
	}
}

// State is the derived SLA classification of a ticket.
type State string

const (
	StateOpenWithin      State = "OPEN_WITHIN_SLA"
	StateOpenAtRisk      State = "OPEN_AT_RISK"
	StateOpenCritical    State = "OPEN_CRITICAL"
	StateOpenOverdue     State = "OPEN_OVERDUE"
	StateClosedCompliant State = "CLOSED_COMPLIANT"
	StateClosedViolated  State = "CLOSED_VIOLATED"
)

// OpenState is a snapshot of an open ticket against its grace period.
type OpenState struct {
	ElapsedHours    float64 `json:"horasTranscurridas"`
	RemainingHours  float64 `json:"horasRestantes"`
	PercentConsumed float64 `json:"porcentajeConsumido"`
	IsOverdue       bool    `json:"vencido"`
}

// EvaluateOpen compares elapsed business hours with the grace period.
//
// With a non-positive grace the percentage is pinned to 0 while IsOverdue
// still compares elapsed >= grace, so such a ticket reads 0% yet overdue.
func EvaluateOpen(elapsed, grace float64) OpenState {
	st := OpenState{
		ElapsedHours:   elapsed,
		RemainingHours: Round2(math.Max(0, grace-elapsed)),
		IsOverdue:      elapsed >= grace,
	}
	if grace > 0 {
		st.PercentConsumed = Round1(elapsed / grace * 100)
	}
	return st
}

// Tier of the snapshot, derived from PercentConsumed only.
func (s OpenState) Tier() Tier { return TierFor(s.PercentConsumed) }

// State maps the tier onto the open states.
func (s OpenState) State() State {
	switch s.Tier() {
	case TierOverdue:
		return StateOpenOverdue
	case TierCritical:
		return StateOpenCritical
	case TierAtRisk:
		return StateOpenAtRisk
	default:
		return StateOpenWithin
	}
}

// ClosedState is the outcome of a resolved ticket.
type ClosedState struct {
	ActualHours     float64 `json:"horasReales"`
	IsCompliant     bool    `json:"cumplido"`
	DifferenceHours float64 `json:"diferencia"`
}

// EvaluateClosed compares the hours a ticket took with its grace period.
// A positive difference means it closed early.
func EvaluateClosed(actual, grace float64) ClosedState {
	return ClosedState{
		ActualHours:     actual,
		IsCompliant:     actual <= grace,
		DifferenceHours: Round1(grace - actual),
	}
}

// State of the closed ticket.
func (s ClosedState) State() State {
	if s.IsCompliant {
		return StateClosedCompliant
	}
	return StateClosedViolated
}
