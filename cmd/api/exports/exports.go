package exports

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog/log"

	apppkg "github.com/mark3748/helpdesk-sla/cmd/api/app"
	"github.com/mark3748/helpdesk-sla/cmd/api/metrics"
	reportshttp "github.com/mark3748/helpdesk-sla/cmd/api/reports"
	"github.com/mark3748/helpdesk-sla/internal/jobs"
	reportspkg "github.com/mark3748/helpdesk-sla/internal/reports"
	"github.com/mark3748/helpdesk-sla/internal/s3"
)

// ComplianceReq selects the tickets and grouping of an export.
type ComplianceReq struct {
	GroupBy    string `json:"group_by" binding:"omitempty,oneof=agent month year department"`
	From       string `json:"from" binding:"omitempty,datetime=2006-01-02"`
	To         string `json:"to" binding:"omitempty,datetime=2006-01-02"`
	Agent      string `json:"agent" binding:"omitempty,max=200"`
	Department string `json:"department" binding:"omitempty,max=200"`
}

func bindRequest(c *gin.Context, a *apppkg.App) (jobs.ExportRequest, bool) {
	var in ComplianceReq
	// an empty body exports everything grouped by agent
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			apppkg.AbortError(c, http.StatusBadRequest, apppkg.CodeInvalidQuery, "invalid export request", reportshttp.FieldErrors(err))
			return jobs.ExportRequest{}, false
		}
	}
	q := reportshttp.Query{From: in.From, To: in.To, Agent: in.Agent, Department: in.Department}
	f, err := q.Filter(a.Engine.Calendar.Location)
	if err != nil {
		apppkg.AbortError(c, http.StatusBadRequest, apppkg.CodeInvalidQuery, err.Error(), map[string]string{"from": "range"})
		return jobs.ExportRequest{}, false
	}
	by, _ := reportspkg.ParseGroupBy(in.GroupBy)
	return jobs.ExportRequest{GroupBy: by, From: f.From, To: f.To, Agent: f.Agent, Department: f.Department}, true
}

// Compliance renders the compliance CSV, stores it and returns a download URL.
func Compliance(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.M == nil {
			metrics.ExportsTotal.WithLabelValues("sync", "error").Inc()
			apppkg.AbortError(c, http.StatusServiceUnavailable, apppkg.CodeNotConfigured, "object store not configured", nil)
			return
		}
		if a.Tickets == nil {
			metrics.ExportsTotal.WithLabelValues("sync", "error").Inc()
			apppkg.AbortError(c, http.StatusServiceUnavailable, apppkg.CodeTicketsUnavailable, "ticket store not configured", nil)
			return
		}
		req, ok := bindRequest(c, a)
		if !ok {
			return
		}
		req.ID = uuid.New().String()
		ctx := c.Request.Context()
		out, err := jobs.RenderCompliance(ctx, a.Engine, a.Tickets, req)
		if err != nil {
			metrics.ExportsTotal.WithLabelValues("sync", "error").Inc()
			log.Ctx(ctx).Error().Err(err).Msg("render compliance export")
			apppkg.AbortError(c, http.StatusServiceUnavailable, apppkg.CodeTicketsUnavailable, "could not load tickets", nil)
			return
		}
		objectKey := s3.ReportKey("compliance", req.ID, "csv")
		oc, cancel := a.ObjCtx(ctx)
		defer cancel()
		_, err = a.M.PutObject(oc, a.Cfg.MinIOBucket, objectKey, bytes.NewReader(out.CSV), int64(len(out.CSV)), minio.PutObjectOptions{ContentType: "text/csv"})
		if err != nil {
			metrics.ExportsTotal.WithLabelValues("sync", "error").Inc()
			log.Ctx(ctx).Error().Err(err).Str("object", objectKey).Msg("upload export")
			apppkg.AbortError(c, http.StatusBadGateway, apppkg.CodeExportFailed, "could not store export", nil)
			return
		}
		metrics.ExportsTotal.WithLabelValues("sync", "ok").Inc()
		c.JSON(http.StatusOK, gin.H{"id": req.ID, "object_key": objectKey, "rows": len(out.Rows), "url": downloadURL(c, a, objectKey)})
	}
}

// downloadURL presigns objectKey when the store supports it and otherwise
// falls back to the plain endpoint URL.
func downloadURL(c *gin.Context, a *apppkg.App, objectKey string) string {
	if p, ok := a.M.(s3.Presigner); ok {
		svc := s3.Service{Client: p, Bucket: a.Cfg.MinIOBucket, MaxTTL: s3.DefaultTTL}
		oc, cancel := a.ObjCtx(c.Request.Context())
		defer cancel()
		u, err := svc.PresignGet(oc, objectKey, "compliance.csv", s3.DefaultTTL)
		if err == nil {
			return u
		}
		log.Ctx(c.Request.Context()).Warn().Err(err).Str("object", objectKey).Msg("presign export")
	}
	scheme := "http"
	if a.Cfg.MinIOUseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, a.Cfg.MinIOEndpoint, a.Cfg.MinIOBucket, objectKey)
}

// Enqueue queues an export for the worker.
func Enqueue(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Q == nil {
			metrics.ExportsTotal.WithLabelValues("async", "error").Inc()
			apppkg.AbortError(c, http.StatusServiceUnavailable, apppkg.CodeNotConfigured, "job queue not configured", nil)
			return
		}
		req, ok := bindRequest(c, a)
		if !ok {
			return
		}
		req, err := jobs.EnqueueExport(c.Request.Context(), a.Q, req)
		if err != nil {
			metrics.ExportsTotal.WithLabelValues("async", "error").Inc()
			log.Ctx(c.Request.Context()).Error().Err(err).Msg("enqueue export")
			apppkg.AbortError(c, http.StatusServiceUnavailable, apppkg.CodeExportFailed, "could not enqueue export", nil)
			return
		}
		metrics.ExportsTotal.WithLabelValues("async", "queued").Inc()
		c.Header("Location", "/exports/compliance/jobs/"+req.ID)
		c.JSON(http.StatusAccepted, gin.H{"id": req.ID, "status": jobs.StatusQueued})
	}
}

// Status reports an export job's progress.
func Status(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Q == nil {
			apppkg.AbortError(c, http.StatusServiceUnavailable, apppkg.CodeNotConfigured, "job queue not configured", nil)
			return
		}
		id := c.Param("id")
		if _, err := uuid.Parse(id); err != nil {
			apppkg.AbortError(c, http.StatusBadRequest, apppkg.CodeInvalidQuery, "invalid export id", map[string]string{"id": "uuid"})
			return
		}
		st, err := jobs.LoadStatus(c.Request.Context(), a.Q, id)
		if errors.Is(err, jobs.ErrNotFound) {
			apppkg.AbortError(c, http.StatusNotFound, apppkg.CodeNotFound, "export not found", nil)
			return
		}
		if err != nil {
			apppkg.AbortError(c, http.StatusServiceUnavailable, apppkg.CodeExportFailed, "could not read export status", nil)
			return
		}
		if st.Status == jobs.StatusDone && st.ObjectKey != "" && a.M != nil {
			c.JSON(http.StatusOK, gin.H{"status": st, "url": downloadURL(c, a, st.ObjectKey)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": st})
	}
}
