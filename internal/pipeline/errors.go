package pipeline

import (
	"errors"
	"fmt"
)

// ErrDeferred marks a stage that was skipped because the run's cost
// ceiling was reached before its model call.
var ErrDeferred = errors.New("stage deferred: cost budget exhausted")

// PartialPipelineError is returned when too few papers made it through
// the per-paper stages to justify the batched stages. The report
// accompanying it is still complete.
type PartialPipelineError struct {
	Succeeded int
	Total     int
	MinRatio  float64
}

func (e *PartialPipelineError) Error() string {
	if e.Succeeded == 0 {
		return fmt.Sprintf("pipeline failed: none of %d papers completed analysis and extraction", e.Total)
	}
	return fmt.Sprintf("pipeline failed: %d of %d papers succeeded, below the minimum success ratio %.2f",
		e.Succeeded, e.Total, e.MinRatio)
}
