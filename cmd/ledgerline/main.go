package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/cmd/ledgerline/cli"
	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/app"
	"github.com/ledgerline/ledgerline/internal/audit"
	audithttp "github.com/ledgerline/ledgerline/internal/audit/http"
	"github.com/ledgerline/ledgerline/internal/auth"
	"github.com/ledgerline/ledgerline/internal/customers"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/observability"
	"github.com/ledgerline/ledgerline/internal/platform/cache"
	"github.com/ledgerline/ledgerline/internal/shared"
	"github.com/ledgerline/ledgerline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "console":
		err = runConsole(ctx, cfg, logger)
	case "jobs":
		err = cli.RunJobs(ctx, cfg.RedisAddr, os.Args[2:], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected serve, console or jobs)\n", command)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", slog.String("command", command), slog.Any("error", err))
		os.Exit(1)
	}
}

type services struct {
	auth      *auth.Service
	customers *customers.Service
	accounts  *accounts.Service
	ledger    *ledger.Service
	audit     *audit.Service
}

func buildServices(pool *pgxpool.Pool, metrics *observability.Metrics, logger *slog.Logger) services {
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	customerRepo := customers.NewRepository(pool)
	customerService := customers.NewService(customerRepo, auditLogger, logger)

	sessionStore := auth.NewSessionStore(pool)
	authService := auth.NewService(customerRepo, sessionStore, auditLogger, metrics, logger)

	accountRepo := accounts.NewRepository(pool)
	accountService := accounts.NewService(accountRepo, customerRepo, auditLogger, accounts.ServiceConfig{}, logger)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger, idempotencyStore, metrics, logger)

	auditService := audit.NewService(audit.NewRepository(pool))

	return services{
		auth:      authService,
		customers: customerService,
		accounts:  accountService,
		ledger:    ledgerService,
		audit:     auditService,
	}
}

func runServe(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "ledgerline_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	metrics := observability.NewMetrics()
	svcs := buildServices(dbpool, metrics, logger)

	authHandler := auth.NewHandler(logger, svcs.auth, sessionManager, csrfManager)
	customersHandler := customers.NewHandler(logger, svcs.customers)
	accountsHandler := accounts.NewHandler(logger, svcs.accounts)
	ledgerHandler := ledger.NewHandler(logger, svcs.ledger)
	auditHandler := audithttp.NewHandler(logger, svcs.audit, audit.NewExporter())

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		return fmt.Errorf("jobs client: %w", err)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		CustomersHandler: customersHandler,
		AccountsHandler:  accountsHandler,
		LedgerHandler:    ledgerHandler,
		AuditHandler:     auditHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func runConsole(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	svcs := buildServices(dbpool, nil, logger)

	console := cli.NewConsole(cli.ConsoleDeps{
		Auth:      svcs.auth,
		Customers: svcs.customers,
		Accounts:  svcs.accounts,
		Ledger:    svcs.ledger,
		In:        os.Stdin,
		Out:       os.Stdout,
	})
	return console.Run(ctx)
}
