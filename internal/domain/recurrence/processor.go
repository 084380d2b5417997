package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fluxo/internal/domain/ledger"
	"fluxo/internal/jobs"
	"fluxo/internal/ratelimit"
)

// Processor consumes re-fire work items one at a time. Items for different
// users process concurrently; items for the same user are capped by the
// limiter's sliding window. Handle is idempotent with respect to repeated
// delivery of the same item.
type Processor struct {
	store   ledger.Store
	limiter *ratelimit.Limiter
	log     zerolog.Logger
	now     func() time.Time
}

// NewProcessor creates a processor over the given store and limiter.
func NewProcessor(store ledger.Store, limiter *ratelimit.Limiter, log zerolog.Logger) *Processor {
	return &Processor{
		store:   store,
		limiter: limiter,
		log:     log,
		now:     time.Now,
	}
}

// Handle processes one work item. Error semantics follow the queue's
// classification: a *jobs.ThrottledError defers redelivery, a permanent
// error drops the item, anything else is retried with backoff. A stale or
// unresolvable item (already reprocessed, transaction or account gone) is
// a no-op success.
func (p *Processor) Handle(ctx context.Context, job jobs.Job) error {
	item, ok := job.(*jobs.RecurrenceDueJob)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unexpected job type: %T", job))
	}
	if err := item.Validate(); err != nil {
		return jobs.Permanent(err)
	}

	allowed, retryAfter, err := p.limiter.Allow(ctx, item.UserID)
	if err != nil {
		p.log.Warn().Err(err).Str("user_id", item.UserID).Msg("Rate limiter unavailable, proceeding")
	}
	if !allowed {
		return &jobs.ThrottledError{RetryAfter: retryAfter}
	}

	now := p.now()

	tx, err := p.store.GetTransaction(ctx, item.TransactionID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		p.log.Info().Str("transaction_id", item.TransactionID).Msg("Transaction gone, skipping item")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch transaction %s: %w", item.TransactionID, err)
	}

	// Idempotency guard: a duplicate delivery arrives after the first one
	// advanced the next recurring date past now.
	if !tx.DueAt(now) {
		p.log.Info().Str("transaction_id", tx.ID).Msg("Transaction no longer due, skipping item")
		return nil
	}

	if _, err := p.store.GetAccount(ctx, tx.AccountID); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			p.log.Info().
				Str("transaction_id", tx.ID).
				Str("account_id", tx.AccountID).
				Msg("Account gone, skipping item")
			return nil
		}
		return fmt.Errorf("failed to fetch account %s: %w", tx.AccountID, err)
	}

	next, err := NextDate(now, *tx.RecurringInterval)
	if err != nil {
		// Data invariant violation: fatal for this item only.
		return jobs.Permanent(err)
	}

	occ, err := p.store.CreateOccurrence(ctx, ledger.OccurrenceParams{
		Original: tx,
		Now:      now,
		Next:     next,
	})
	if errors.Is(err, ledger.ErrNotDue) {
		p.log.Info().Str("transaction_id", tx.ID).Msg("Occurrence already materialized, skipping item")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create occurrence for %s: %w", tx.ID, err)
	}

	p.log.Info().
		Str("transaction_id", tx.ID).
		Str("occurrence_id", occ.ID).
		Str("user_id", tx.UserID).
		Str("amount", tx.SignedAmount().String()).
		Time("next_recurring_date", next).
		Msg("Recurring transaction processed")
	return nil
}
