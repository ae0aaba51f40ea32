package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/visaforge/backend/internal/auth"
	"github.com/visaforge/backend/internal/budget"
	"github.com/visaforge/backend/internal/config"
	"github.com/visaforge/backend/internal/credit"
	"github.com/visaforge/backend/internal/dashboard"
	"github.com/visaforge/backend/internal/ledger"
	"github.com/visaforge/backend/internal/notification"
	"github.com/visaforge/backend/internal/reconcile"
	"github.com/visaforge/backend/internal/repository"
	"github.com/visaforge/backend/internal/router"
	"github.com/visaforge/backend/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// Schema migrations, then River's own tables.
	if err := migrations.Up(ctx, cfg.DatabaseURL); err != nil {
		slog.Error("Schema migrations failed", "error", err)
		os.Exit(1)
	}
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied")

	studentRepo := repository.NewStudentRepo(pool)
	agentRepo := repository.NewAgentRepo(pool)
	budgetRepo := repository.NewBudgetRepo(pool)
	requestRepo := repository.NewCreditRequestRepo(pool)
	commissionRepo := repository.NewCommissionRepo(pool)

	// Notifier: insert func is set after the River client is created
	// (breaks the init cycle between notifier and workers).
	var insertMu sync.Mutex
	var insertFn notification.InsertFunc
	insertEmail := func(ctx context.Context, args notification.SendEmailArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, args)
	}
	notifier := notification.NewNotifier(insertEmail, logger)

	ledgerSvc := ledger.NewService(pool, budgetRepo,
		ledger.NewStudentStore(studentRepo), ledger.NewAgentStore(agentRepo),
		requestRepo, commissionRepo)
	authSvc := auth.NewService(studentRepo, agentRepo, notifier, cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword)
	budgetSvc := budget.NewService(budgetRepo, studentRepo, agentRepo, ledgerSvc, notifier)
	creditSvc := credit.NewService(requestRepo, studentRepo, agentRepo, ledgerSvc, notifier)
	reconcileSvc := reconcile.NewService(reconcile.NewRepository(pool))

	var mailer notification.Mailer
	if cfg.SendGridAPIKey != "" {
		mailer = notification.NewSendgridMailer(cfg.SendGridAPIKey, cfg.EmailFromName, cfg.EmailFrom)
	} else {
		slog.Warn("SENDGRID_API_KEY not set, emails go to the log")
		mailer = notification.NewConsoleMailer(logger)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, notification.NewSendEmailWorker(mailer))
	river.AddWorker(workers, reconcile.NewReportWorker(reconcileSvc, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.ReconcileInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return reconcile.ReportJobArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, args notification.SendEmailArgs) error {
		_, err := riverClient.Insert(ctx, args, nil)
		return err
	}
	insertMu.Unlock()

	handlers := router.Handlers{
		Auth:      auth.NewHandler(authSvc, logger),
		Budget:    budget.NewHandler(budgetSvc, logger),
		Credit:    credit.NewHandler(creditSvc, logger),
		Dashboard: dashboard.NewHandler(studentRepo, agentRepo, logger),
		Ledger:    ledger.NewHandler(commissionRepo, logger),
		Reconcile: reconcile.NewHandler(reconcileSvc, logger),
	}
	apiHandler := router.New(handlers, authSvc)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiHandler)

	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	addr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
