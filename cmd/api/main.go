package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apppkg "github.com/mark3748/helpdesk-sla/cmd/api/app"
	authpkg "github.com/mark3748/helpdesk-sla/cmd/api/auth"
	exportspkg "github.com/mark3748/helpdesk-sla/cmd/api/exports"
	"github.com/mark3748/helpdesk-sla/cmd/api/metrics"
	"github.com/mark3748/helpdesk-sla/cmd/api/migrations"
	reportspkg "github.com/mark3748/helpdesk-sla/cmd/api/reports"
	slaspkg "github.com/mark3748/helpdesk-sla/cmd/api/slas"
	"github.com/mark3748/helpdesk-sla/internal/ratelimit"
)

// server adds the probes and routes to the shared App.
type server struct {
	*apppkg.App
	pingRedis func(ctx context.Context) error
}

func newServer(cfg apppkg.Config, db apppkg.DB, keyf jwt.Keyfunc, store apppkg.ObjectStore, q *redis.Client) *server {
	s := &server{App: apppkg.NewApp(cfg, db, keyf, store, q)}
	if q != nil {
		s.pingRedis = func(ctx context.Context) error { return q.Ping(ctx).Err() }
	}
	s.routes()
	return s
}

func (s *server) routes() {
	r := s.R
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/livez", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/readyz", s.readyz)
	r.GET("/metrics", metrics.Handler())

	auth := r.Group("/")
	auth.Use(authpkg.Middleware(s.App))
	auth.GET("/me", authpkg.Me)

	agent := auth.Group("/", authpkg.RequireRole("agent"))
	agent.GET("/slas", slaspkg.List(s.App))
	agent.GET("/sla/elapsed", slaspkg.Elapsed(s.App))
	agent.GET("/sla/holidays", slaspkg.Holidays(s.App))

	rep := agent.Group("/reports", s.reportLimit())
	rep.GET("/risk", reportspkg.Risk(s.App))
	rep.GET("/closed", reportspkg.Closed(s.App))
	rep.GET("/compliance", reportspkg.Compliance(s.App))
	rep.GET("/alerts", reportspkg.Alerts(s.App))

	agent.POST("/exports/compliance", s.reportLimit(), exportspkg.Compliance(s.App))
	agent.POST("/exports/compliance/jobs", exportspkg.Enqueue(s.App))
	agent.GET("/exports/compliance/jobs/:id", exportspkg.Status(s.App))
}

// reportLimit applies the per-user Redis limiter to report endpoints and
// counts rejections.
func (s *server) reportLimit() gin.HandlerFunc {
	if s.Q == nil || s.Cfg.ReportRateLimit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	l := ratelimit.New(s.Q, s.Cfg.ReportRateLimit, time.Minute, "reports:")
	l.OnReject = func(*gin.Context) { metrics.RateLimitRejectionsTotal.WithLabelValues("reports").Inc() }
	return l.Middleware(ratelimit.UserKey)
}

func (s *server) readyz(c *gin.Context) {
	ctx := c.Request.Context()
	if s.DB != nil {
		dctx, cancel := withTimeout(ctx, s.Cfg.DBTimeout)
		var one int
		err := s.DB.QueryRow(dctx, "select 1").Scan(&one)
		cancel()
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("readyz db")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db"})
			return
		}
	}
	if s.pingRedis != nil {
		rctx, cancel := withTimeout(ctx, s.Cfg.RedisTimeout)
		err := s.pingRedis(rctx)
		cancel()
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("readyz redis")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "redis"})
			return
		}
	}
	if fs, ok := s.M.(*apppkg.FsObjectStore); ok {
		if err := os.MkdirAll(filepath.Join(fs.Base, s.Cfg.MinIOBucket), 0o755); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object store"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func main() {
	_ = godotenv.Load()
	cfg := apppkg.GetConfig()
	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	var keyf jwt.Keyfunc
	if cfg.JWKSURL != "" {
		keyf, err = authpkg.JWKSKeyfunc(ctx, cfg.JWKSURL, 10*time.Minute)
		if err != nil {
			log.Fatal().Err(err).Str("jwks_url", cfg.JWKSURL).Msg("jwks")
		}
	}

	var store apppkg.ObjectStore
	if cfg.MinIOEndpoint != "" {
		mc, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccess, cfg.MinIOSecret, ""),
			Secure: cfg.MinIOUseSSL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("minio init")
		}
		store = mc
	} else if cfg.FileStorePath != "" {
		if err := os.MkdirAll(cfg.FileStorePath, 0o755); err != nil {
			log.Fatal().Err(err).Str("path", cfg.FileStorePath).Msg("create filestore path")
		}
		store = &apppkg.FsObjectStore{Base: cfg.FileStorePath}
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error().Err(err).Msg("redis ping")
		}
		defer rdb.Close()
	}

	s := newServer(cfg, pool, keyf, store, rdb)
	srv := &http.Server{
		Addr:           cfg.Addr,
		Handler:        s.R,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()
	log.Info().Str("addr", cfg.Addr).Str("tz", s.Engine.Calendar.Location.String()).Msg("api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("listen")
	}
}
