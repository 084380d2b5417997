package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fluxo/internal/config"
	"fluxo/internal/domain/budget"
	"fluxo/internal/domain/ledger"
	"fluxo/internal/domain/recurrence"
	"fluxo/internal/domain/report"
	"fluxo/internal/infrastructure/insights"
	"fluxo/internal/infrastructure/memory"
	"fluxo/internal/infrastructure/postgres"
	smtpmailer "fluxo/internal/infrastructure/smtp"
	"fluxo/internal/jobs/inmemory"
	"fluxo/internal/ratelimit"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB // nil in dev mode

	Store ledger.Store
	Queue *inmemory.Queue

	RecurrenceService *recurrence.Service
	Processor         *recurrence.Processor
	BudgetEvaluator   *budget.Evaluator
	ReportAggregator  *report.Aggregator
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config, log zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	// Ledger store and rate-limit counter share one backend: postgres in
	// production, memory in dev mode.
	var counterStore ratelimit.CounterStore
	if cfg.Database.DevMode {
		log.Warn().Msg("DEV_MODE enabled, using in-memory store")
		deps.Store = memory.NewStore()
		counterStore = ratelimit.NewMemoryCounterStore()
	} else {
		db, err := postgres.New(cfg.Database.ConnectionString())
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Connected to database")
		deps.DB = db
		deps.Store = postgres.NewLedgerRepository(db)
		counterStore = postgres.NewRateLimitRepository(db)
	}

	limiter := ratelimit.NewLimiter(counterStore, cfg.RateLimit.PerUser, cfg.RateLimit.Window)

	// Job substrate: in-memory queue with bounded retries. The job store
	// keeps failed jobs visible for inspection.
	jobStore := inmemory.NewStore()
	deps.Queue = inmemory.NewQueue(cfg.Queue.BufferSize, cfg.Queue.WorkerCount, cfg.Queue.MaxRetries, jobStore, log)

	// Messenger: SMTP when configured, logging otherwise. User IDs double
	// as addresses until an identity directory is wired in.
	messenger := smtpmailer.NewMailer(smtpmailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, func(ctx context.Context, userID string) (string, error) {
		return userID, nil
	}, log)

	insightClient := insights.NewClient(cfg.Insights.Model, log)

	deps.RecurrenceService = recurrence.NewService(deps.Store, deps.Queue, log)
	deps.Processor = recurrence.NewProcessor(deps.Store, limiter, log)
	deps.BudgetEvaluator = budget.NewEvaluator(
		deps.Store, messenger, decimal.NewFromInt(int64(cfg.Budget.AlertThresholdPercent)), log)
	deps.ReportAggregator = report.NewAggregator(
		deps.Store, insightClient, messenger, cfg.Insights.Timeout, log)

	return deps, nil
}

// Close releases held resources.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
