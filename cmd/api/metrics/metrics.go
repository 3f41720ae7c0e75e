package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mark3748/helpdesk-sla/internal/reports"
	"github.com/mark3748/helpdesk-sla/internal/sla"
)

var (
	ReportRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sla_report_requests_total",
		Help: "Report requests by report name and outcome.",
	}, []string{"report", "outcome"})
	RateLimitRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Number of requests rejected by rate limiting.",
	}, []string{"route"})
	ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sla_exports_total",
		Help: "Compliance exports by mode and outcome.",
	}, []string{"mode", "outcome"})
	// OpenTickets is the tier breakdown seen by the most recent risk report.
	OpenTickets = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sla_open_tickets",
		Help: "Open tickets by SLA tier as of the last risk report.",
	}, []string{"tier"})
)

func init() {
	prometheus.MustRegister(ReportRequestsTotal, RateLimitRejectionsTotal, ExportsTotal, OpenTickets)
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc { return gin.WrapH(promhttp.Handler()) }

// ObserveRisk replaces the open ticket gauges with the tiers in recs.
func ObserveRisk(recs []reports.RiskRecord) {
	counts := map[sla.Tier]float64{
		sla.TierWithin:   0,
		sla.TierAtRisk:   0,
		sla.TierCritical: 0,
		sla.TierOverdue:  0,
	}
	for _, r := range recs {
		counts[r.Tier]++
	}
	for tier, n := range counts {
		OpenTickets.WithLabelValues(string(tier)).Set(n)
	}
}

// Report counts one report request.
func Report(name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ReportRequestsTotal.WithLabelValues(name, outcome).Inc()
}
