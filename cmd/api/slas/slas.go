package slas

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apppkg "github.com/mark3748/helpdesk-sla/cmd/api/app"
	slapkg "github.com/mark3748/helpdesk-sla/internal/sla"
)

// List returns SLA policies.
func List(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.DB == nil {
			c.JSON(http.StatusOK, []slapkg.Policy{})
			return
		}
		slas, err := slapkg.ListPolicies(c.Request.Context(), a.DB)
		if err != nil {
			log.Ctx(c.Request.Context()).Error().Err(err).Msg("list sla policies")
			apppkg.AbortError(c, http.StatusServiceUnavailable, apppkg.CodePoliciesUnavailable, "could not load sla policies", nil)
			return
		}
		c.JSON(http.StatusOK, slas)
	}
}

// Elapsed returns the business hours between the start and end query values.
// Unparsable values count as no time elapsed rather than a client error.
func Elapsed(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := c.Query("start")
		end := c.Query("end")
		cal := a.Engine.Calendar
		hours := cal.ElapsedHoursString(start, end, a.Engine.CurrentHolidays(c.Request.Context()))
		c.JSON(http.StatusOK, gin.H{"start": start, "end": end, "hours": hours})
	}
}

// Holidays returns the holiday snapshot the engine is using and the work week.
func Holidays(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		week := a.Engine.Calendar.Week
		days := make([]string, 0, len(week.Days))
		for _, d := range week.Days {
			days = append(days, d.String())
		}
		c.JSON(http.StatusOK, gin.H{
			"holidays": a.Engine.CurrentHolidays(c.Request.Context()),
			"work_week": gin.H{
				"start":    week.Start.String(),
				"end":      week.End.String(),
				"days":     days,
				"timezone": a.Engine.Calendar.Location.String(),
			},
		})
	}
}
