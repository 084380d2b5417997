package recurrence

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fluxo/internal/domain/ledger"
	"fluxo/internal/jobs"
)

// Scanner discovers transactions due for recurring reprocessing. It is
// read-only; a transaction appears at most once per scan.
type Scanner struct {
	store ledger.Store
}

// NewScanner creates a scanner over the given ledger store.
func NewScanner(store ledger.Store) *Scanner {
	return &Scanner{store: store}
}

// Scan returns all transactions due at the given instant.
func (s *Scanner) Scan(ctx context.Context, now time.Time) ([]*ledger.Transaction, error) {
	due, err := s.store.FindDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to scan due transactions: %w", err)
	}
	return due, nil
}

// Dispatcher converts due transactions into discrete work items and hands
// them to the delivery substrate. Emission is fire-and-forget: a failed
// publish is logged and the transaction stays due, so the next scan picks
// it up again.
type Dispatcher struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewDispatcher creates a dispatcher publishing to the given queue.
func NewDispatcher(publisher jobs.Publisher, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{publisher: publisher, log: log}
}

// Dispatch emits one work item per due transaction and returns how many
// were published.
func (d *Dispatcher) Dispatch(ctx context.Context, due []*ledger.Transaction) int {
	published := 0
	for _, tx := range due {
		job := &jobs.RecurrenceDueJob{
			TransactionID: tx.ID,
			UserID:        tx.UserID,
		}
		if err := d.publisher.PublishRecurrenceDue(ctx, job); err != nil {
			d.log.Error().
				Err(err).
				Str("transaction_id", tx.ID).
				Str("user_id", tx.UserID).
				Msg("Failed to publish re-fire job")
			continue
		}
		published++
	}
	return published
}

// Service runs one scan-and-dispatch pass, the daily trigger's entry point.
type Service struct {
	scanner    *Scanner
	dispatcher *Dispatcher
	log        zerolog.Logger
}

// NewService wires a scanner and dispatcher into a batch pass.
func NewService(store ledger.Store, publisher jobs.Publisher, log zerolog.Logger) *Service {
	return &Service{
		scanner:    NewScanner(store),
		dispatcher: NewDispatcher(publisher, log),
		log:        log,
	}
}

// RunPass scans for due transactions and dispatches one work item each.
func (s *Service) RunPass(ctx context.Context, now time.Time) error {
	due, err := s.scanner.Scan(ctx, now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		s.log.Info().Msg("No recurring transactions due")
		return nil
	}

	published := s.dispatcher.Dispatch(ctx, due)
	s.log.Info().
		Int("due", len(due)).
		Int("published", published).
		Msg("Dispatched recurring transactions")
	return nil
}
