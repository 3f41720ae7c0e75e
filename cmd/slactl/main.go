// Command slactl computes business hours and drives compliance exports from
// the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mark3748/helpdesk-sla/internal/jobs"
	"github.com/mark3748/helpdesk-sla/internal/reports"
	"github.com/mark3748/helpdesk-sla/internal/sla"
)

// deps opens the backends a command needs. Tests replace them.
type deps struct {
	engine func(ctx context.Context) (*sla.Engine, func(), error)
	redis  func() *redis.Client
}

func envDeps() deps {
	return deps{
		engine: func(ctx context.Context) (*sla.Engine, func(), error) {
			s := sla.SettingsFromEnv()
			url := os.Getenv("DATABASE_URL")
			if url == "" {
				eng, err := s.Engine(nil, nil, 0)
				return eng, func() {}, err
			}
			pool, err := pgxpool.New(ctx, url)
			if err != nil {
				return nil, nil, fmt.Errorf("db connect: %w", err)
			}
			eng, err := s.Engine(pool, nil, 2*time.Second)
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
			return eng, pool.Close, nil
		},
		redis: func() *redis.Client {
			addr := os.Getenv("REDIS_ADDR")
			if addr == "" {
				addr = "localhost:6379"
			}
			return redis.NewClient(&redis.Options{Addr: addr})
		},
	}
}

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(zerolog.WarnLevel)
	if err := rootCmd(envDeps()).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:          "slactl",
		Short:        "Business hours and SLA compliance tooling",
		SilenceUsage: true,
	}
	root.AddCommand(elapsedCmd(d), holidaysCmd(d), exportCmd(d))
	return root
}

func elapsedCmd(d deps) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "elapsed <start> <end>",
		Short: "Business hours between two instants",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, closeFn, err := d.engine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			cal := eng.Calendar
			for _, a := range args {
				if _, ok := cal.ParseInstant(a); !ok {
					return fmt.Errorf("invalid instant %q", a)
				}
			}
			hours := cal.ElapsedHoursString(args[0], args[1], eng.CurrentHolidays(ctx))
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"start": args[0], "end": args[1], "hours": hours})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", hours)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func holidaysCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "holidays",
		Short: "List the holidays the calendar currently excludes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, closeFn, err := d.engine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			h := eng.CurrentHolidays(ctx)
			rows := make([]table.Row, 0, len(h.Recurring)+len(h.Specific))
			for _, r := range h.Recurring {
				rows = append(rows, table.Row{fmt.Sprintf("%02d-%02d", int(r.Month), r.Day), "yearly", r.Name})
			}
			for _, s := range h.Specific {
				rows = append(rows, table.Row{fmt.Sprintf("%04d-%02d-%02d", s.Year, int(s.Month), s.Day), "once", s.Name})
			}
			sort.SliceStable(rows, func(i, j int) bool { return fmt.Sprint(rows[i][0]) < fmt.Sprint(rows[j][0]) })
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Date", "Repeat", "Name"})
			tw.AppendRows(rows)
			tw.AppendFooter(table.Row{"", "", eng.Calendar.Location.String()})
			tw.Render()
			return nil
		},
	}
}

func exportCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Queue and inspect compliance exports",
	}
	cmd.AddCommand(exportRunCmd(d), exportStatusCmd(d))
	return cmd
}

type exportFlags struct {
	GroupBy    string
	From       string
	To         string
	Agent      string
	Department string
}

// request turns the flags into an export request. Dates are read in loc and
// the "to" day is inclusive.
func (f exportFlags) request(loc *time.Location) (jobs.ExportRequest, error) {
	g, err := reports.ParseGroupBy(f.GroupBy)
	if err != nil {
		return jobs.ExportRequest{}, err
	}
	req := jobs.ExportRequest{GroupBy: g, Agent: f.Agent, Department: f.Department}
	if f.From != "" {
		t, err := time.ParseInLocation("2006-01-02", f.From, loc)
		if err != nil {
			return req, fmt.Errorf("invalid --from: %w", err)
		}
		req.From = &t
	}
	if f.To != "" {
		t, err := time.ParseInLocation("2006-01-02", f.To, loc)
		if err != nil {
			return req, fmt.Errorf("invalid --to: %w", err)
		}
		t = t.AddDate(0, 0, 1)
		req.To = &t
	}
	if req.From != nil && req.To != nil && !req.From.Before(*req.To) {
		return req, errors.New("--from must not be after --to")
	}
	return req, nil
}

func exportRunCmd(d deps) *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Queue a compliance export for the worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := time.Local
			if cal, err := sla.SettingsFromEnv().Calendar(); err == nil {
				loc = cal.Location
			}
			req, err := f.request(loc)
			if err != nil {
				return err
			}
			rdb := d.redis()
			defer rdb.Close()
			req, err = jobs.EnqueueExport(cmd.Context(), rdb, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), req.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.GroupBy, "group-by", string(reports.GroupAgent), "agent, month, year or department")
	cmd.Flags().StringVar(&f.From, "from", "", "first closed date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.To, "to", "", "last closed date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.Agent, "agent", "", "agent filter")
	cmd.Flags().StringVar(&f.Department, "department", "", "department filter")
	return cmd
}

func exportStatusCmd(d deps) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show the state of a queued export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb := d.redis()
			defer rdb.Close()
			st, err := jobs.LoadStatus(cmd.Context(), rdb, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Status", "Rows", "Object", "Error"})
			tw.AppendRow(table.Row{st.ID, st.Status, st.Rows, st.ObjectKey, st.Error})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
