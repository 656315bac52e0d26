package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expertassist/internal/audit"
	"expertassist/internal/auth"
	"expertassist/internal/calls"
	"expertassist/internal/config"
	"expertassist/internal/experts"
	"expertassist/internal/generator"
	"expertassist/internal/lifecycle"
	"expertassist/internal/reporting"
	"expertassist/internal/telephony"
	"expertassist/internal/users"
	"expertassist/migrations"
	"expertassist/pkg/logger"
	"expertassist/pkg/metrics"
	"expertassist/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName      = "expertassist"
	cancelFlagTTL    = time.Hour
	reconcileLockKey = "lock:reconciler"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	version, err := utils.MigrateUp(rootCtx, "pgx", cfg.PostgresDSN(), migrations.FS)
	if err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	log.Info("migrations applied", "version", version)

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, serviceName)

	// Stores
	userRepo := users.NewPostgresRepository(db)
	expertRepo := experts.NewPostgresRepository(db)
	callRepo := calls.NewPostgresRepository(db)
	auditSvc := audit.NewService(audit.NewPostgresRepository(db))

	gateway := telephony.NewGateway(cfg.Twilio, cfg.App.PublicBaseURL, log)
	report := telephony.DescribeConfig(cfg.Twilio)
	log.Info("telephony configured", "mode", report.Mode, "message", report.Message)

	canceler := lifecycle.NewRedisCanceler(rdb, cancelFlagTTL)
	orchestrator := lifecycle.NewOrchestrator(lifecycle.Deps{
		Calls:       callRepo,
		Experts:     expertRepo,
		Users:       userRepo,
		Gateway:     gateway,
		Transcriber: generator.TemplateTranscriber{},
		Summarizer:  generator.NewSummarizer(cfg.Summarizer, log),
		Canceler:    canceler,
		Audit:       auditSvc,
		Metrics:     m,
		Log:         log,
		Timing: lifecycle.Timing{
			ConnectDelay: cfg.Lifecycle.ConnectDelay,
			CallDuration: cfg.Lifecycle.CallDuration,
			StageTimeout: cfg.Lifecycle.StageTimeout,
		},
	})

	// Lifecycles outlive the request that started them but not the process.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()
	dispatcher := lifecycle.NewDispatcher(runCtx, orchestrator.Run, canceler, m, log)

	// A full slot lease covers the slowest lifecycle plus slack.
	slotTTL := cfg.Lifecycle.ConnectDelay + cfg.Lifecycle.CallDuration + 4*cfg.Lifecycle.StageTimeout
	callSvc := calls.NewService(calls.Deps{
		Repo:    callRepo,
		Experts: expertRepo,
		Runner:  dispatcher,
		Limiter: lifecycle.NewRedisLimiter(rdb, cfg.Lifecycle.MaxActiveCallsPerUser, slotTTL),
		Hanger:  gateway,
		Audit:   auditSvc,
		Log:     log,
	})

	reconciler := lifecycle.NewReconciler(
		callRepo,
		lifecycle.NewRedisLocker(rdb, reconcileLockKey, cfg.Lifecycle.ReconcileInterval),
		lifecycle.ReconcilerConfig{
			Interval:   cfg.Lifecycle.ReconcileInterval,
			StaleAfter: cfg.Lifecycle.StaleAfter,
		},
		auditSvc, m, log,
	)

	userSvc := users.NewService(userRepo)
	deps := routeDeps{
		cfg:     cfg,
		log:     log,
		metrics: m,
		db:      db,
		rdb:     rdb,
		auth:    authManager,
		users:   userSvc,
		experts: experts.NewService(expertRepo),
		calls:   callSvc,
		reports: reporting.NewService(expertRepo, callRepo),
		audit:   auditSvc,
		gateway: gateway,
		record:  callRepo,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return reconciler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "err", err)
		}
		// Interrupted lifecycles are failed by the orchestrator; the
		// reconciler picks up anything that could not be written.
		cancelRuns()
		if err := dispatcher.Wait(shutdownCtx); err != nil {
			log.Warn("lifecycles still running at shutdown", "running", dispatcher.Running(), "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}
