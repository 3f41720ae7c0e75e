package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	metrics "github.com/mark3748/helpdesk-sla/cmd/api/metrics"
	"github.com/mark3748/helpdesk-sla/internal/reports"
	"github.com/mark3748/helpdesk-sla/internal/sla"
)

func TestObserveRisk(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.OpenTickets = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "sla_open_tickets"}, []string{"tier"})
	reg.MustRegister(metrics.OpenTickets)

	metrics.ObserveRisk([]reports.RiskRecord{
		{TicketID: "a", Tier: sla.TierOverdue},
		{TicketID: "b", Tier: sla.TierOverdue},
		{TicketID: "c", Tier: sla.TierAtRisk},
	})
	tests := []struct {
		tier sla.Tier
		want float64
	}{
		{sla.TierOverdue, 2},
		{sla.TierAtRisk, 1},
		{sla.TierCritical, 0},
		{sla.TierWithin, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			if got := testutil.ToFloat64(metrics.OpenTickets.WithLabelValues(string(tt.tier))); got != tt.want {
				t.Fatalf("gauge = %v, want %v", got, tt.want)
			}
		})
	}

	// a later report replaces the earlier counts
	metrics.ObserveRisk(nil)
	if got := testutil.ToFloat64(metrics.OpenTickets.WithLabelValues(string(sla.TierOverdue))); got != 0 {
		t.Fatalf("gauge after reset = %v", got)
	}
}

func TestReport(t *testing.T) {
	metrics.ReportRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sla_report_requests_total"}, []string{"report", "outcome"})
	metrics.Report("risk", nil)
	metrics.Report("risk", errors.New("boom"))
	metrics.Report("risk", nil)
	if got := testutil.ToFloat64(metrics.ReportRequestsTotal.WithLabelValues("risk", "ok")); got != 2 {
		t.Fatalf("ok = %v", got)
	}
	if got := testutil.ToFloat64(metrics.ReportRequestsTotal.WithLabelValues("risk", "error")); got != 1 {
		t.Fatalf("error = %v", got)
	}
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", metrics.Handler())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected default collectors in output")
	}
}
