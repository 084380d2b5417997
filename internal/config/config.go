package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	Queue     QueueConfig
	RateLimit RateLimitConfig
	Budget    BudgetConfig
	Insights  InsightsConfig
	SMTP      SMTPConfig
}

type DatabaseConfig struct {
	// DevMode runs the engine against the in-memory store instead of
	// PostgreSQL.
	DevMode  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type SchedulerConfig struct {
	// ScanTime is the daily due-item scan time in HH:MM.
	ScanTime string
	// BudgetEveryHours is the budget alert cadence in hours.
	BudgetEveryHours int
	// ReportTime is the time of day on the 1st of the month for reports,
	// in HH:MM.
	ReportTime string
	// ReportDay is the day of the month reports run on.
	ReportDay int

	WorkerCount  int
	JobDelay     time.Duration
	QueueSize    int
	RunOnStartup bool
}

type QueueConfig struct {
	BufferSize  int
	WorkerCount int
	MaxRetries  int
}

type RateLimitConfig struct {
	// PerUser caps processed work items per user within each window.
	PerUser int
	Window  time.Duration
}

type BudgetConfig struct {
	// AlertThresholdPercent is the budget usage percentage that fires an
	// alert.
	AlertThresholdPercent int
}

type InsightsConfig struct {
	Model   string
	Timeout time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	schedulerWorkers, err := strconv.Atoi(getEnv("SCHEDULER_WORKERS", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_WORKERS: %w", err)
	}
	schedulerJobDelay, err := time.ParseDuration(getEnv("SCHEDULER_JOB_DELAY", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_DELAY: %w", err)
	}
	schedulerQueueSize, err := strconv.Atoi(getEnv("SCHEDULER_QUEUE_SIZE", "256"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_QUEUE_SIZE: %w", err)
	}

	budgetEveryHours, err := strconv.Atoi(getEnv("BUDGET_CHECK_EVERY_HOURS", "6"))
	if err != nil {
		return nil, fmt.Errorf("invalid BUDGET_CHECK_EVERY_HOURS: %w", err)
	}
	reportDay, err := strconv.Atoi(getEnv("REPORT_DAY_OF_MONTH", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_DAY_OF_MONTH: %w", err)
	}

	queueBuffer, err := strconv.Atoi(getEnv("QUEUE_BUFFER_SIZE", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_BUFFER_SIZE: %w", err)
	}
	queueWorkers, err := strconv.Atoi(getEnv("QUEUE_WORKERS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_WORKERS: %w", err)
	}
	queueMaxRetries, err := strconv.Atoi(getEnv("QUEUE_MAX_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_MAX_RETRIES: %w", err)
	}

	ratePerUser, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_USER", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_USER: %w", err)
	}
	rateWindow, err := time.ParseDuration(getEnv("RATE_LIMIT_WINDOW", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}

	alertThreshold, err := strconv.Atoi(getEnv("BUDGET_ALERT_THRESHOLD_PERCENT", "80"))
	if err != nil {
		return nil, fmt.Errorf("invalid BUDGET_ALERT_THRESHOLD_PERCENT: %w", err)
	}

	insightsTimeout, err := time.ParseDuration(getEnv("INSIGHTS_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid INSIGHTS_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			DevMode:  getBoolEnv("DEV_MODE", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "fluxo"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "fluxo"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Scheduler: SchedulerConfig{
			ScanTime:         getEnv("SCAN_TIME", "02:00"),
			BudgetEveryHours: budgetEveryHours,
			ReportTime:       getEnv("REPORT_TIME", "08:00"),
			ReportDay:        reportDay,
			WorkerCount:      schedulerWorkers,
			JobDelay:         schedulerJobDelay,
			QueueSize:        schedulerQueueSize,
			RunOnStartup:     getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		Queue: QueueConfig{
			BufferSize:  queueBuffer,
			WorkerCount: queueWorkers,
			MaxRetries:  queueMaxRetries,
		},
		RateLimit: RateLimitConfig{
			PerUser: ratePerUser,
			Window:  rateWindow,
		},
		Budget: BudgetConfig{
			AlertThresholdPercent: alertThreshold,
		},
		Insights: InsightsConfig{
			Model:   getEnv("INSIGHTS_MODEL", ""),
			Timeout: insightsTimeout,
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
	}

	// Validate required fields
	if !cfg.Database.DevMode && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required unless DEV_MODE=true")
	}
	if cfg.Scheduler.BudgetEveryHours <= 0 || cfg.Scheduler.BudgetEveryHours > 24 {
		return nil, fmt.Errorf("BUDGET_CHECK_EVERY_HOURS must be between 1 and 24")
	}
	if cfg.Scheduler.ReportDay < 1 || cfg.Scheduler.ReportDay > 28 {
		return nil, fmt.Errorf("REPORT_DAY_OF_MONTH must be between 1 and 28")
	}
	if cfg.RateLimit.PerUser <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_USER must be positive")
	}
	if cfg.RateLimit.Window <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if cfg.Budget.AlertThresholdPercent <= 0 || cfg.Budget.AlertThresholdPercent > 100 {
		return nil, fmt.Errorf("BUDGET_ALERT_THRESHOLD_PERCENT must be between 1 and 100")
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}
