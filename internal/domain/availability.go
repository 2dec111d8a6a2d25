package domain

// ServiceOffering is a named appointment category tracked by a numeric
// provider-side identifier. Offerings are fixed at deploy time.
type ServiceOffering struct {
	ID          int64
	DisplayName string
}

// AvailabilityBatch is one polling cycle's snapshot of open calendar dates
// per service offering id. Dates keep the provider-supplied string format.
//
// A missing key and a present key with an empty slice both mean "nothing to
// notify" for matching purposes; fetch failures are only distinguished in
// logs and metrics.
type AvailabilityBatch map[int64][]string

// HasDates reports whether any service in the batch has at least one open
// date. An all-empty batch short-circuits the whole dispatch path.
func (b AvailabilityBatch) HasDates() bool {
	for _, dates := range b {
		if len(dates) > 0 {
			return true
		}
	}
	return false
}
