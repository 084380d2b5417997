package notification

import "context"

// Messenger defines the interface for delivering a rendered message to a
// user. Implemented by the SMTP mailer in the infrastructure layer.
// Delivery is best-effort: callers log failures and carry on, never letting
// a delivery problem block ledger work.
type Messenger interface {
	Send(ctx context.Context, userID, subject, body string) error
}
