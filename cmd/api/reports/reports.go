package reports

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	apppkg "github.com/mark3748/helpdesk-sla/cmd/api/app"
	"github.com/mark3748/helpdesk-sla/cmd/api/metrics"
	reportspkg "github.com/mark3748/helpdesk-sla/internal/reports"
)

// Query holds the filters every report accepts. Dates are calendar days in the
// business time zone; to is inclusive.
type Query struct {
	From       string `form:"from" json:"from" binding:"omitempty,datetime=2006-01-02"`
	To         string `form:"to" json:"to" binding:"omitempty,datetime=2006-01-02"`
	Agent      string `form:"agent" json:"agent" binding:"omitempty,max=200"`
	Department string `form:"department" json:"department" binding:"omitempty,max=200"`
	GroupBy    string `form:"group_by" json:"group_by" binding:"omitempty,oneof=agent month year department"`
	Months     int    `form:"months" json:"months" binding:"omitempty,min=1,max=36"`
}

// Filter converts q into a ticket filter in loc.
func (q Query) Filter(loc *time.Location) (reportspkg.Filter, error) {
	f := reportspkg.Filter{Agent: q.Agent, Department: q.Department}
	if q.From != "" {
		t, err := time.ParseInLocation("2006-01-02", q.From, loc)
		if err != nil {
			return f, err
		}
		f.From = &t
	}
	if q.To != "" {
		t, err := time.ParseInLocation("2006-01-02", q.To, loc)
		if err != nil {
			return f, err
		}
		t = t.AddDate(0, 0, 1)
		f.To = &t
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, errors.New("from must not be after to")
	}
	return f, nil
}

// FieldErrors maps validator failures to lower-case field names.
func FieldErrors(err error) map[string]string {
	errs := map[string]string{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			errs[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return errs
}

// bind parses the query and loads the matching tickets, aborting with the
// error envelope on failure.
func bind(c *gin.Context, a *apppkg.App, name string, tweak func(*reportspkg.Filter)) (Query, []reportspkg.TicketRecord, bool) {
	var q Query
	if err := c.ShouldBindQuery(&q); err != nil {
		metrics.Report(name, err)
		apppkg.AbortError(c, http.StatusBadRequest, apppkg.CodeInvalidQuery, "invalid report query", FieldErrors(err))
		return q, nil, false
	}
	f, err := q.Filter(a.Engine.Calendar.Location)
	if err != nil {
		metrics.Report(name, err)
		apppkg.AbortError(c, http.StatusBadRequest, apppkg.CodeInvalidQuery, err.Error(), map[string]string{"from": "range"})
		return q, nil, false
	}
	if tweak != nil {
		tweak(&f)
	}
	if a.Tickets == nil {
		metrics.Report(name, errors.New("no ticket source"))
		apppkg.AbortError(c, http.StatusServiceUnavailable, apppkg.CodeTicketsUnavailable, "ticket store not configured", nil)
		return q, nil, false
	}
	tickets, err := a.Tickets.Tickets(c.Request.Context(), f)
	if err != nil {
		metrics.Report(name, err)
		log.Ctx(c.Request.Context()).Error().Err(err).Str("report", name).Msg("load tickets")
		apppkg.AbortError(c, http.StatusServiceUnavailable, apppkg.CodeTicketsUnavailable, "could not load tickets", nil)
		return q, nil, false
	}
	metrics.Report(name, nil)
	return q, tickets, true
}

// Risk lists open tickets with their SLA snapshot, most consumed first.
func Risk(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, tickets, ok := bind(c, a, "risk", func(f *reportspkg.Filter) { f.OpenOnly = true })
		if !ok {
			return
		}
		recs := reportspkg.RiskRecords(c.Request.Context(), a.Engine, tickets)
		// only an unfiltered report describes the whole open backlog
		if c.Request.URL.RawQuery == "" {
			metrics.ObserveRisk(recs)
		}
		c.JSON(http.StatusOK, recs)
	}
}

// Closed lists closed tickets with their compliance outcome.
func Closed(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, tickets, ok := bind(c, a, "closed", func(f *reportspkg.Filter) { f.ClosedOnly = true })
		if !ok {
			return
		}
		c.JSON(http.StatusOK, reportspkg.ClosedRecords(c.Request.Context(), a.Engine, tickets))
	}
}

// Compliance groups closed tickets by agent, month, year or department.
func Compliance(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, tickets, ok := bind(c, a, "compliance", func(f *reportspkg.Filter) { f.ClosedOnly = true })
		if !ok {
			return
		}
		by, _ := reportspkg.ParseGroupBy(q.GroupBy)
		c.JSON(http.StatusOK, gin.H{
			"group_by": by,
			"rows":     reportspkg.Compliance(c.Request.Context(), a.Engine, tickets, by),
		})
	}
}

// Alerts returns tier buckets, per-agent counts and the monthly trend.
func Alerts(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, tickets, ok := bind(c, a, "alerts", nil)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, reportspkg.Alerts(c.Request.Context(), a.Engine, tickets, q.Months))
	}
}
