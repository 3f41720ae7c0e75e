// Package jobs is the Redis job queue shared by the API, the worker and slactl.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mark3748/helpdesk-sla/internal/reports"
	"github.com/mark3748/helpdesk-sla/internal/sla"
)

// Queue is the list the worker pops jobs from.
const Queue = "jobs"

// Job types.
const (
	TypeExport = "sla_export"
	TypeAlert  = "sla_alert"
)

// StatusTTL is how long export status keys live.
const StatusTTL = 24 * time.Hour

// Export states.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// ErrNotFound is returned for an unknown export id.
var ErrNotFound = errors.New("export not found")

// Job is the envelope pushed onto a queue.
type Job struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ExportRequest asks for a compliance report over a ticket filter.
type ExportRequest struct {
	ID         string          `json:"id"`
	GroupBy    reports.GroupBy `json:"group_by"`
	From       *time.Time      `json:"from,omitempty"`
	To         *time.Time      `json:"to,omitempty"`
	Agent      string          `json:"agent,omitempty"`
	Department string          `json:"department,omitempty"`
}

// Filter selects the closed tickets the export covers.
func (r ExportRequest) Filter() reports.Filter {
	return reports.Filter{From: r.From, To: r.To, Agent: r.Agent, Department: r.Department, ClosedOnly: true}
}

// ExportStatus is stored under StatusKey(id).
type ExportStatus struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	ObjectKey string    `json:"object_key,omitempty"`
	JSONKey   string    `json:"json_key,omitempty"`
	Rows      int       `json:"rows"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Alert is pushed when an open ticket enters the critical or overdue tier.
type Alert struct {
	TicketID   string        `json:"ticket_id"`
	Agent      string        `json:"agent"`
	Department string        `json:"department"`
	Tier       sla.Tier      `json:"tier"`
	State      sla.OpenState `json:"state"`
	At         time.Time     `json:"at"`
}

// StatusKey is the Redis key holding an export's status.
func StatusKey(id string) string { return "sla_export:" + id }

// AlertKey dedupes alerts per ticket and tier.
func AlertKey(ticketID string, tier sla.Tier) string {
	return "sla_alert:" + ticketID + ":" + string(tier)
}

// Push wraps data in a Job and appends it to queue.
func Push(ctx context.Context, rdb *redis.Client, queue, typ string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", typ, err)
	}
	b, err := json.Marshal(Job{Type: typ, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := rdb.RPush(ctx, queue, b).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", typ, err)
	}
	return nil
}

// EnqueueExport records a queued status and pushes the job. An empty req.ID
// gets a fresh uuid. The returned request carries the id.
func EnqueueExport(ctx context.Context, rdb *redis.Client, req ExportRequest) (ExportRequest, error) {
	if rdb == nil {
		return req, errors.New("enqueue export: no redis")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.GroupBy == "" {
		req.GroupBy = reports.GroupAgent
	}
	if err := SaveStatus(ctx, rdb, ExportStatus{ID: req.ID, Status: StatusQueued}); err != nil {
		return req, err
	}
	return req, Push(ctx, rdb, Queue, TypeExport, req)
}

// SaveStatus stamps and stores st.
func SaveStatus(ctx context.Context, rdb *redis.Client, st ExportStatus) error {
	st.UpdatedAt = time.Now().UTC()
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal export status: %w", err)
	}
	if err := rdb.Set(ctx, StatusKey(st.ID), b, StatusTTL).Err(); err != nil {
		return fmt.Errorf("save export status: %w", err)
	}
	return nil
}

// LoadStatus reads an export's status.
func LoadStatus(ctx context.Context, rdb *redis.Client, id string) (ExportStatus, error) {
	var st ExportStatus
	b, err := rdb.Get(ctx, StatusKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return st, ErrNotFound
	}
	if err != nil {
		return st, fmt.Errorf("load export status: %w", err)
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return st, fmt.Errorf("decode export status: %w", err)
	}
	return st, nil
}

// Rendered is a compliance report in both export formats.
type Rendered struct {
	Rows []reports.ComplianceRow
	CSV  []byte
	JSON []byte
}

// RenderCompliance loads the tickets for req and renders the compliance rows.
func RenderCompliance(ctx context.Context, eng *sla.Engine, src reports.TicketSource, req ExportRequest) (Rendered, error) {
	var out Rendered
	tickets, err := src.Tickets(ctx, req.Filter())
	if err != nil {
		return out, err
	}
	out.Rows = reports.Compliance(ctx, eng, tickets, req.GroupBy)
	var buf bytes.Buffer
	if err := reports.WriteComplianceCSV(&buf, out.Rows); err != nil {
		return out, err
	}
	out.CSV = buf.Bytes()
	if out.JSON, err = json.Marshal(out.Rows); err != nil {
		return out, fmt.Errorf("marshal compliance: %w", err)
	}
	return out, nil
}
