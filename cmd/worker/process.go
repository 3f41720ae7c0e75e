package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mark3748/helpdesk-sla/internal/jobs"
	"github.com/mark3748/helpdesk-sla/internal/reports"
	"github.com/mark3748/helpdesk-sla/internal/s3"
	"github.com/mark3748/helpdesk-sla/internal/sla"
)

// ObjectStore is the part of MinIO the worker writes exports to.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type worker struct {
	cfg     Config
	eng     *sla.Engine
	tickets reports.TicketSource
	store   ObjectStore
	rdb     *redis.Client
}

// popTimeout bounds each BLPOP so shutdown is noticed.
const popTimeout = 5 * time.Second

// processQueueJob pops and handles one job. An empty pop is not an error.
func (w *worker) processQueueJob(ctx context.Context) error {
	res, err := w.rdb.BLPop(ctx, popTimeout, jobs.Queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("blpop: %w", err)
	}
	if len(res) < 2 {
		return nil
	}
	var job jobs.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		log.Error().Err(err).Msg("unmarshal job")
		return nil
	}
	return w.handle(ctx, job)
}

func (w *worker) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobs.TypeExport:
		var req jobs.ExportRequest
		if err := json.Unmarshal(job.Data, &req); err != nil || req.ID == "" {
			log.Error().Err(err).Msg("unmarshal export job")
			return nil
		}
		w.handleExportJob(ctx, req)
	default:
		log.Warn().Str("type", job.Type).Msg("unknown job type")
	}
	return nil
}

// handleExportJob renders the compliance report, uploads CSV and JSON copies
// and records the outcome under the export's status key.
func (w *worker) handleExportJob(ctx context.Context, req jobs.ExportRequest) {
	l := log.With().Str("export", req.ID).Logger()
	st := jobs.ExportStatus{ID: req.ID, Status: jobs.StatusRunning}
	if err := jobs.SaveStatus(ctx, w.rdb, st); err != nil {
		l.Error().Err(err).Msg("save export status")
	}
	fail := func(err error, msg string) {
		l.Error().Err(err).Msg(msg)
		st.Status, st.Error = jobs.StatusFailed, msg
		if err := jobs.SaveStatus(ctx, w.rdb, st); err != nil {
			l.Error().Err(err).Msg("save export status")
		}
	}
	if w.store == nil {
		fail(errors.New("object store not configured"), "object store not configured")
		return
	}
	out, err := jobs.RenderCompliance(ctx, w.eng, w.tickets, req)
	if err != nil {
		fail(err, "load tickets")
		return
	}
	csvKey := s3.ReportKey("compliance", req.ID, "csv")
	if _, err := w.store.PutObject(ctx, w.cfg.MinIOBucket, csvKey, bytes.NewReader(out.CSV), int64(len(out.CSV)), minio.PutObjectOptions{ContentType: "text/csv"}); err != nil {
		fail(err, "upload csv")
		return
	}
	jsonKey := s3.ReportKey("compliance", req.ID, "json")
	if _, err := w.store.PutObject(ctx, w.cfg.MinIOBucket, jsonKey, bytes.NewReader(out.JSON), int64(len(out.JSON)), minio.PutObjectOptions{ContentType: "application/json"}); err != nil {
		fail(err, "upload json")
		return
	}
	st.Status, st.ObjectKey, st.JSONKey, st.Rows = jobs.StatusDone, csvKey, jsonKey, len(out.Rows)
	if err := jobs.SaveStatus(ctx, w.rdb, st); err != nil {
		l.Error().Err(err).Msg("save export status")
		return
	}
	l.Info().Int("rows", st.Rows).Str("group_by", string(req.GroupBy)).Msg("export done")
}
