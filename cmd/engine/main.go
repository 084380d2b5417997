package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fluxo/internal/config"
	"fluxo/internal/logger"
	"fluxo/internal/scheduler"
)

func main() {
	log := logger.New()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Engine error")
	}
}

func run() error {
	// Load .env if present; real env vars take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New()
	log.Info().Msg("Starting fluxo engine")

	deps, err := NewDependencies(cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Consume re-fire work items.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := deps.Queue.Start(ctx, deps.Processor.Handle); err != nil {
		return err
	}

	triggers, err := buildTriggers(cfg, deps)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Config{
		Triggers:     triggers,
		WorkerCount:  cfg.Scheduler.WorkerCount,
		JobDelay:     cfg.Scheduler.JobDelay,
		QueueSize:    cfg.Scheduler.QueueSize,
		RunOnStartup: cfg.Scheduler.RunOnStartup,
	}, log)
	if err != nil {
		return err
	}

	sched.Start()
	log.Info().Msg("Engine started, waiting for triggers")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down engine")

	sched.Shutdown(30 * time.Second)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := deps.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during queue shutdown")
	}

	log.Info().Msg("Engine exited")
	return nil
}

// buildTriggers wires the three periodic passes: daily scan-and-dispatch,
// six-hourly budget alerts, and monthly per-user reports.
func buildTriggers(cfg *config.Config, deps *Dependencies) ([]scheduler.Trigger, error) {
	scanHour, scanMinute, err := scheduler.ParseScheduleTime(cfg.Scheduler.ScanTime)
	if err != nil {
		return nil, err
	}
	reportHour, reportMinute, err := scheduler.ParseScheduleTime(cfg.Scheduler.ReportTime)
	if err != nil {
		return nil, err
	}

	return []scheduler.Trigger{
		{
			Name:     "recurring-scan",
			Schedule: scheduler.DailyAt{Hour: scanHour, Minute: scanMinute},
			Provider: func(ctx context.Context) ([]scheduler.Job, error) {
				return []scheduler.Job{&scheduler.FuncJob{
					Name: "recurring transaction scan",
					Fn: func(ctx context.Context) error {
						return deps.RecurrenceService.RunPass(ctx, time.Now())
					},
				}}, nil
			},
		},
		{
			Name:     "budget-alerts",
			Schedule: scheduler.EveryHours{N: cfg.Scheduler.BudgetEveryHours},
			Provider: func(ctx context.Context) ([]scheduler.Job, error) {
				return []scheduler.Job{&scheduler.FuncJob{
					Name: "budget alert pass",
					Fn:   deps.BudgetEvaluator.RunPass,
				}}, nil
			},
		},
		{
			Name: "monthly-reports",
			Schedule: scheduler.MonthlyOn{
				Day:    cfg.Scheduler.ReportDay,
				Hour:   reportHour,
				Minute: reportMinute,
			},
			Provider: func(ctx context.Context) ([]scheduler.Job, error) {
				reportJobs, err := deps.ReportAggregator.Jobs(ctx)
				if err != nil {
					return nil, err
				}
				out := make([]scheduler.Job, 0, len(reportJobs))
				for _, j := range reportJobs {
					out = append(out, j)
				}
				return out, nil
			},
		},
	}, nil
}
