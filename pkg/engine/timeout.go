package engine

import (
	"fmt"
	"sync"
	"time"
)

// runResult passes a pipeline result through the worker channel.
type runResult struct {
	res *Result
	err error
}

// waitWithTimeout waits for a result from ch. A non-positive timeout waits
// forever. A result whose generation is no longer current is discarded.
//
// On timeout the worker goroutine may still be running; it only touches its
// own clones of the input, and its result is dropped when it completes.
func waitWithTimeout(
	ch <-chan runResult,
	timeout time.Duration,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
) (*Result, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, ErrSuperseded
		}
		return r.res, r.err

	case <-expired:
		return nil, fmt.Errorf("engine: run exceeded %s: %w", timeout, ErrTimeout)
	}
}
