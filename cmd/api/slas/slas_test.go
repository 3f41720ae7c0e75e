package slas

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apppkg "github.com/mark3748/helpdesk-sla/cmd/api/app"
	authpkg "github.com/mark3748/helpdesk-sla/cmd/api/auth"
	slapkg "github.com/mark3748/helpdesk-sla/internal/sla"
)

type fakeDB struct {
	rows []slapolicy
	err  error
}

type slapolicy struct {
	id    string
	name  string
	grace float64
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if db.err != nil {
		return nil, db.err
	}
	return &fakeRows{rows: db.rows}, nil
}
func (db *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (db *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

type fakeRows struct {
	rows []slapolicy
	i    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Next() bool {
	if r.i >= len(r.rows) {
		return false
	}
	r.i++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	if r.i == 0 || r.i > len(r.rows) {
		return pgx.ErrNoRows
	}
	row := r.rows[r.i-1]
	if p, ok := dest[0].(*string); ok {
		*p = row.id
	}
	if p, ok := dest[1].(*string); ok {
		*p = row.name
	}
	if p, ok := dest[2].(*float64); ok {
		*p = row.grace
	}
	return nil
}

func TestList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := &fakeDB{rows: []slapolicy{{"1", "Estándar", 9}}}
	cfg := apppkg.Config{Env: "test", TestBypassAuth: true}
	a := apppkg.NewApp(cfg, db, nil, nil, nil)
	a.R.GET("/slas", authpkg.Middleware(a), List(a))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/slas", nil)
	a.R.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0]["name"].(string) != "Estándar" || out[0]["grace_period_hours"].(float64) != 9 {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestListStoreError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := &fakeDB{err: errors.New("pq: relation sla_policies does not exist")}
	a := apppkg.NewApp(apppkg.Config{Env: "test", TestBypassAuth: true}, db, nil, nil, nil)
	a.R.GET("/slas", authpkg.Middleware(a), List(a))

	rr := httptest.NewRecorder()
	a.R.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/slas", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var env apppkg.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil || env.Error == nil {
		t.Fatalf("expected error envelope: %s", rr.Body.String())
	}
	if env.Error.Code != apppkg.CodePoliciesUnavailable || strings.Contains(rr.Body.String(), "relation") {
		t.Fatalf("unexpected error: %+v", env.Error)
	}
}

func TestElapsed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := apppkg.Config{Env: "test", TestBypassAuth: true, SLA: slapkg.Settings{Timezone: "UTC"}}
	a := apppkg.NewApp(cfg, nil, nil, nil, nil)
	a.R.GET("/sla/elapsed", authpkg.Middleware(a), Elapsed(a))

	cases := []struct {
		name  string
		query string
		want  float64
	}{
		{"weekend", "?start=2024-07-05T16:00:00Z&end=2024-07-08T09:00:00Z", 2},
		{"reversed", "?start=2024-07-08T09:00:00Z&end=2024-07-05T16:00:00Z", 0},
		{"garbage", "?start=soon&end=later", 0},
		{"missing", "", 0},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			a.R.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sla/elapsed"+tt.query, nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			var out struct {
				Hours float64 `json:"hours"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
				t.Fatal(err)
			}
			if out.Hours != tt.want {
				t.Fatalf("hours = %v, want %v", out.Hours, tt.want)
			}
		})
	}
}

func TestHolidays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := apppkg.Config{Env: "test", TestBypassAuth: true, SLA: slapkg.Settings{Timezone: "UTC"}}
	a := apppkg.NewApp(cfg, nil, nil, nil, nil)
	a.Engine.Holidays = slapkg.NewHolidayStore(staticSource{{RepeatKind: slapkg.RepeatNever, StartDate: ptr(time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC))}}, time.Hour)
	a.R.GET("/sla/holidays", authpkg.Middleware(a), Holidays(a))

	rr := httptest.NewRecorder()
	a.R.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sla/holidays", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out struct {
		Holidays slapkg.Holidays `json:"holidays"`
		WorkWeek struct {
			Start string   `json:"start"`
			Days  []string `json:"days"`
		} `json:"work_week"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Holidays.Specific) != 1 || out.Holidays.Specific[0].Day != 24 {
		t.Fatalf("holidays = %+v", out.Holidays)
	}
	if out.WorkWeek.Start != "08:30" || len(out.WorkWeek.Days) != 5 {
		t.Fatalf("work week = %+v", out.WorkWeek)
	}
}

type staticSource []slapkg.ScheduleEntry

func (s staticSource) Entries(context.Context) ([]slapkg.ScheduleEntry, error) { return s, nil }

func ptr(t time.Time) *time.Time { return &t }
