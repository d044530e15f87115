package deadline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildhive/buildhive/pkg/types"
)

func TestTracker_Remaining(t *testing.T) {
	now := time.Now()
	current := now
	tracker := NewTrackerAt(10*time.Second, func() time.Time { return current })

	assert.True(t, tracker.Remaining())

	current = now.Add(9 * time.Second)
	assert.True(t, tracker.Remaining())

	current = now.Add(10 * time.Second)
	assert.False(t, tracker.Remaining())

	// Stays expired
	current = now.Add(time.Hour)
	assert.False(t, tracker.Remaining())
}

func TestTracker_Err(t *testing.T) {
	tracker := NewTracker(time.Second)

	err := tracker.Err("assign")
	require.Error(t, err)

	var timeoutErr *types.TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "assign", timeoutErr.Stage)
	assert.Contains(t, err.Error(), "assign")
}

func TestTracker_ZeroTimeout(t *testing.T) {
	now := time.Now()
	tracker := NewTrackerAt(0, func() time.Time { return now })
	assert.False(t, tracker.Remaining())
}
