package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mark3748/helpdesk-sla/internal/reports"
	"github.com/mark3748/helpdesk-sla/internal/sla"
)

type staticTickets struct {
	tickets []reports.TicketRecord
	got     reports.Filter
	err     error
}

func (s *staticTickets) Tickets(ctx context.Context, f reports.Filter) ([]reports.TicketRecord, error) {
	s.got = f
	return s.tickets, s.err
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestEnqueueExport(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	req, err := EnqueueExport(ctx, rdb, ExportRequest{Agent: "ana"})
	if err != nil {
		t.Fatal(err)
	}
	if req.ID == "" || req.GroupBy != reports.GroupAgent {
		t.Fatalf("request = %+v", req)
	}

	items, err := mr.List(Queue)
	if err != nil || len(items) != 1 {
		t.Fatalf("queue = %v, %v", items, err)
	}
	var job Job
	if err := json.Unmarshal([]byte(items[0]), &job); err != nil {
		t.Fatal(err)
	}
	if job.Type != TypeExport {
		t.Fatalf("job type = %q", job.Type)
	}
	var got ExportRequest
	if err := json.Unmarshal(job.Data, &got); err != nil || got.ID != req.ID || got.Agent != "ana" {
		t.Fatalf("job data = %+v, %v", got, err)
	}

	st, err := LoadStatus(ctx, rdb, req.ID)
	if err != nil || st.Status != StatusQueued {
		t.Fatalf("status = %+v, %v", st, err)
	}
	if ttl := mr.TTL(StatusKey(req.ID)); ttl != StatusTTL {
		t.Fatalf("status ttl = %v", ttl)
	}
}

func TestEnqueueWithoutRedis(t *testing.T) {
	if _, err := EnqueueExport(context.Background(), nil, ExportRequest{}); err == nil {
		t.Fatal("expected error without redis")
	}
}

func TestLoadStatusMissing(t *testing.T) {
	_, rdb := newRedis(t)
	if _, err := LoadStatus(context.Background(), rdb, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRenderCompliance(t *testing.T) {
	cal, err := sla.NewCalendar(sla.DefaultWorkWeek, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	eng := sla.NewEngine(cal, nil)
	closed := time.Date(2024, 7, 1, 16, 30, 0, 0, time.UTC)
	src := &staticTickets{tickets: []reports.TicketRecord{
		{ID: "T5", Agent: "ana", CreatedAt: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC), ClosedAt: &closed, GracePeriodHours: 9},
	}}
	from := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	out, err := RenderCompliance(context.Background(), eng, src, ExportRequest{GroupBy: reports.GroupAgent, From: &from, Department: "soporte"})
	if err != nil {
		t.Fatal(err)
	}
	if !src.got.ClosedOnly || src.got.From == nil || src.got.Department != "soporte" {
		t.Fatalf("filter = %+v", src.got)
	}
	if len(out.Rows) != 1 || out.Rows[0].CompliancePercent != 100 {
		t.Fatalf("rows = %+v", out.Rows)
	}
	lines := strings.Split(strings.TrimSpace(string(out.CSV)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "ana,1,1,0,100.0,7.50") {
		t.Fatalf("csv = %q", out.CSV)
	}
	var rows []reports.ComplianceRow
	if err := json.Unmarshal(out.JSON, &rows); err != nil || len(rows) != 1 {
		t.Fatalf("json = %s, %v", out.JSON, err)
	}
}

func TestRenderComplianceSourceError(t *testing.T) {
	cal, _ := sla.NewCalendar(sla.DefaultWorkWeek, time.UTC)
	src := &staticTickets{err: errors.New("db down")}
	if _, err := RenderCompliance(context.Background(), sla.NewEngine(cal, nil), src, ExportRequest{}); err == nil {
		t.Fatal("expected source error")
	}
}

func TestKeys(t *testing.T) {
	if got := AlertKey("T1", sla.TierOverdue); got != "sla_alert:T1:overdue" {
		t.Fatalf("AlertKey = %q", got)
	}
	if got := StatusKey("x"); got != "sla_export:x" {
		t.Fatalf("StatusKey = %q", got)
	}
}
