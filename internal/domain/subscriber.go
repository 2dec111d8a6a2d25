package domain

import "time"

// Subscriber is a chat identity that opted into availability notifications
// for one or more service offerings. Rows are never deleted; unsubscribing
// from everything leaves an empty ServiceIDs set.
type Subscriber struct {
	ChatID    int64
	FirstName string
	LastName  string
	// ServiceIDs holds the subscribed service offering ids, sorted ascending.
	// Invariant: every id is a key of the service catalog.
	ServiceIDs []int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsActive reports whether the subscriber has at least one subscription.
func (s *Subscriber) IsActive() bool {
	return len(s.ServiceIDs) > 0
}

// SubscribedTo reports whether the subscriber follows the given service.
func (s *Subscriber) SubscribedTo(serviceID int64) bool {
	for _, id := range s.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}
