package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a fresh UUIDv7. Version 7 ids are time-sortable, which the
// command queue relies on for fair claim ordering.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Validate reports whether s is a well-formed UUID.
func Validate(s string) error {
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	return nil
}
