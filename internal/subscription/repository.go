// Package subscription provides subscriber and subscription management.
package subscription

import (
	"context"

	"github.com/baraks/slotwatch/internal/domain"
)

// Repository defines the interface for subscriber data access. All
// mutations are atomic read-modify-writes: concurrent commands from the
// same chat must never lose an update.
type Repository interface {
	// Upsert creates the subscriber on first registration or merges
	// servicesToAdd into the existing set (set union). Registering twice
	// for the same service is a no-op beyond the union. Returns the
	// resulting row.
	Upsert(ctx context.Context, chatID int64, firstName, lastName string, servicesToAdd []int64) (*domain.Subscriber, error)

	// RemoveServices subtracts servicesToRemove from the subscriber's set
	// (set difference). An empty servicesToRemove means "remove all". The
	// row is kept even when the set becomes empty. Unknown chat ids are a
	// no-op, not an error.
	RemoveServices(ctx context.Context, chatID int64, servicesToRemove []int64) (*domain.Subscriber, error)

	// GetServices returns the subscriber's service id set. Unknown chat
	// ids yield an empty set so callers treat "unknown" and "zero
	// subscriptions" uniformly.
	GetServices(ctx context.Context, chatID int64) ([]int64, error)

	// ListActive returns all subscribers with a non-empty service set.
	ListActive(ctx context.Context) ([]domain.Subscriber, error)
}
