package subscription

import "errors"

// ErrRepository marks unrecoverable storage failures. Command handlers
// report these to the subscriber as a failed confirmation and alert the
// admin chat; they never abort a polling cycle.
var ErrRepository = errors.New("subscription repository failure")
