package ride

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a ride id has no row.
var ErrNotFound = errors.New("ride not found")

// AlreadyAssignedError is the expected race outcome when two drivers accept
// the same ride: the second assignment observes the first and must not
// overwrite it. Handlers treat it as a no-op, not a failure.
type AlreadyAssignedError struct {
	RideID            string
	AssignedDriverID  string
	AttemptedDriverID string
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("ride %s already assigned to driver %s (attempted %s)",
		e.RideID, e.AssignedDriverID, e.AttemptedDriverID)
}
