package deadline

import (
	"sync"
	"time"

	"github.com/buildhive/buildhive/pkg/log"
	"github.com/buildhive/buildhive/pkg/types"
)

// Tracker is the process-wide deadline gate shared by every polling loop.
// It captures a start instant at construction; Remaining reports whether
// the configured timeout has elapsed since then. Pure computation, no I/O.
type Tracker struct {
	start   time.Time
	timeout time.Duration

	// now is replaceable in tests
	now func() time.Time

	mu      sync.Mutex
	expired bool
}

// NewTracker creates a tracker whose deadline is timeout from now.
func NewTracker(timeout time.Duration) *Tracker {
	return &Tracker{
		start:   time.Now(),
		timeout: timeout,
		now:     time.Now,
	}
}

// NewTrackerAt creates a tracker with an injected clock. Used by tests to
// step time deterministically.
func NewTrackerAt(timeout time.Duration, now func() time.Time) *Tracker {
	return &Tracker{
		start:   now(),
		timeout: timeout,
		now:     now,
	}
}

// Remaining reports whether the deadline has not yet passed. Every polling
// loop consults this before each iteration and must exit with a timeout
// error the first time it returns false.
func (t *Tracker) Remaining() bool {
	ok := t.now().Sub(t.start) < t.timeout

	if !ok {
		t.mu.Lock()
		if !t.expired {
			t.expired = true
			logger := log.WithComponent("deadline")
			logger.Debug().
				Dur("timeout", t.timeout).
				Msg("global deadline expired")
		}
		t.mu.Unlock()
	}

	return ok
}

// Err builds the timeout error for the named stage.
func (t *Tracker) Err(stage string) error {
	return &types.TimeoutError{Stage: stage}
}
