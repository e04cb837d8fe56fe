package reminders

import (
	"fmt"

	"github.com/mamadbah2/medrefill/internal/domain/models"
)

// RunError aborts a whole dispatch run, e.g. when due medicines cannot be
// selected. Per-user delivery failures never produce a RunError.
type RunError struct {
	Mode models.DispatchMode
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s reminder run failed: %v", e.Mode, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
