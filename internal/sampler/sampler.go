// internal/sampler/sampler.go
// Package sampler times repeated executions of a unit of inference work.
package sampler

import (
	"fmt"
	"time"
)

// Sample executes work exactly n times, strictly sequentially, timing each
// call independently with the monotonic clock, and returns the ordered
// elapsed durations in seconds. No warm-up call is made here; callers that
// want one must invoke the work untimed before sampling. The first failing
// call aborts the remaining iterations and discards the partial timings.
func Sample(n int, work func() error) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("sampler: repeat count must be >= 1, got %d", n)
	}

	runtimes := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := work(); err != nil {
			return nil, fmt.Errorf("sampler: iteration %d of %d: %w", i+1, n, err)
		}
		runtimes = append(runtimes, time.Since(start).Seconds())
	}
	return runtimes, nil
}
