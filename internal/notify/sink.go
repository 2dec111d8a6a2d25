// Package notify matches availability snapshots against subscribers and
// dispatches rendered messages.
package notify

import "context"

// Sink delivers one rendered message to one chat. Implementations decide
// retryability via the IsRetryable convention on their errors.
type Sink interface {
	Send(ctx context.Context, chatID int64, text string) error
}
