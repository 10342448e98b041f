package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"telephony-gateway/internal/audit"
	"telephony-gateway/internal/auth"
	"telephony-gateway/internal/config"
	"telephony-gateway/internal/ingress"
	"telephony-gateway/internal/outbound"
	"telephony-gateway/internal/reporting"
	"telephony-gateway/internal/telephony"
	"telephony-gateway/pkg/logger"
	"telephony-gateway/pkg/utils"
)

const (
	shutdownTimeout = 20 * time.Second
	memoryAuditCap  = 10_000
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook ingress server and the operator API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log := logger.New(cfg.App.Env, cfg.App.LogFormat)
		slog.SetDefault(log)
		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}

		rt, err := buildRuntime(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer rt.close()

		return rt.run(ctx, stop)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runtime holds every long-lived component of the serve command.
type runtime struct {
	cfg      config.Config
	log      *slog.Logger
	provider telephony.Provider
	repo     audit.Repository
	audit    *audit.Service
	outbound *outbound.Service
	ingress  *ingress.Server
	operator *http.Server

	db  *sql.DB
	rdb *redis.Client
}

func buildRuntime(ctx context.Context, cfg config.Config, log *slog.Logger, opts ...telephony.Option) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: log}

	provider, err := telephony.NewFromConfig(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("configure %s provider: %w", cfg.Provider, err)
	}
	rt.provider = provider

	repo, err := rt.auditRepository(ctx)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.repo = repo
	rt.audit = audit.NewService(repo)

	chunking, err := outbound.ChunkOptionsFrom(cfg.Chunking)
	if err != nil {
		rt.close()
		return nil, err
	}
	outOpts := []outbound.Option{outbound.WithChunkOptions(chunking), outbound.WithAudit(rt.audit)}

	limiter, err := rt.sendLimiter(ctx)
	if err != nil {
		rt.close()
		return nil, err
	}
	if limiter != nil {
		outOpts = append(outOpts, outbound.WithLimiter(limiter))
	}
	rt.outbound = outbound.New(provider, log, outOpts...)

	rt.ingress = ingress.New(cfg.Server, provider, logEvents(), log,
		ingress.WithRejectionHook(rt.recordRejection),
	)

	if cfg.OperatorEnabled() {
		manager, err := auth.NewManager(cfg.Operator)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.operator = &http.Server{
			Addr:              cfg.OperatorAddr(),
			Handler:           operatorEngine(log, rt.outbound, rt.reporting(), manager),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      cfg.Outbound.HTTPTimeout + 30*time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return rt, nil
}

// auditRepository uses Postgres when DB_HOST is set, memory otherwise.
func (rt *runtime) auditRepository(ctx context.Context) (audit.Repository, error) {
	if rt.cfg.DB.Host == "" {
		return audit.NewMemoryRepo(memoryAuditCap), nil
	}
	db, err := utils.OpenPostgres(ctx, utils.DriverPgx, rt.cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, fmt.Errorf("postgres init: %w", err)
	}
	rt.db = db

	repo := audit.NewPostgresRepo(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rt.log.Info("audit trail stored in postgres", "host", rt.cfg.DB.Host, "db", rt.cfg.DB.Name)
	return repo, nil
}

// sendLimiter returns nil unless both Redis and a positive concurrency are configured.
func (rt *runtime) sendLimiter(ctx context.Context) (outbound.Limiter, error) {
	if rt.cfg.Redis.Host == "" || rt.cfg.Outbound.SendConcurrency <= 0 {
		return nil, nil
	}
	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: rt.cfg.RedisAddr()})
	if err != nil {
		return nil, fmt.Errorf("redis init: %w", err)
	}
	rt.rdb = rdb

	rt.log.Info("send concurrency capped",
		"limit", rt.cfg.Outbound.SendConcurrency,
		"key", outbound.SlotKey(rt.provider.Name()),
	)
	limiter, err := outbound.NewRedisLimiter(rdb, rt.cfg.Outbound.SendConcurrency, rt.cfg.Outbound.SendSlotTTL)
	if err != nil {
		return nil, err
	}
	return limiter, nil
}

// reporting returns nil when the audit repository cannot list events.
func (rt *runtime) reporting() *reporting.Service {
	if lister, ok := rt.repo.(reporting.Repository); ok {
		return reporting.NewService(lister)
	}
	return nil
}

func (rt *runtime) recordRejection(ctx context.Context, r ingress.Rejection) {
	if err := rt.audit.LogWebhookRejected(ctx, string(r.Provider), r.Reason, r.RemoteAddr, r.RequestID); err != nil {
		rt.log.Warn("audit append failed", "error", err.Error())
	}
}

func (rt *runtime) run(ctx context.Context, stop context.CancelFunc) error {
	errCh := make(chan error, 2)

	go func() {
		rt.log.Info("webhook ingress listening",
			"addr", rt.ingress.Addr(),
			"provider", string(rt.provider.Name()),
			"webhook_path", rt.cfg.Server.WebhookPath,
			"status_path", rt.cfg.Server.StatusPath,
			"env", rt.cfg.App.Env,
		)
		if err := rt.ingress.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("ingress server: %w", err)
			stop()
		}
	}()

	if rt.operator != nil {
		go func() {
			rt.log.Info("operator api listening", "addr", rt.operator.Addr)
			if err := rt.operator.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("operator server: %w", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	rt.log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := rt.ingress.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("ingress shutdown: %w", err))
	}
	if rt.operator != nil {
		if err := rt.operator.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("operator shutdown: %w", err))
		}
	}

	for {
		select {
		case err := <-errCh:
			errs = append(errs, err)
		default:
			return errors.Join(errs...)
		}
	}
}

func (rt *runtime) close() {
	if rt.rdb != nil {
		_ = rt.rdb.Close()
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
}
