package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegressionTrackerRecordsFailureStreak(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	rt := NewRegressionTracker(s)

	now := time.Now()
	_, err = rt.RecordOutcome("syntax-check", false, now)
	require.NoError(t, err)
	check, err := rt.RecordOutcome("syntax-check", false, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, check.TotalAttempts)
	assert.Equal(t, 2, check.TotalFailures)
	assert.Equal(t, 2, check.ConsecutiveFailures)
	assert.NotNil(t, check.FirstFailureAt)
}

func TestRegressionTrackerResetsConsecutiveOnSuccess(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	rt := NewRegressionTracker(s)

	now := time.Now()
	_, err = rt.RecordOutcome("endpoint-check", false, now)
	require.NoError(t, err)
	check, err := rt.RecordOutcome("endpoint-check", true, now.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 0, check.ConsecutiveFailures)
	assert.Equal(t, 1, check.TotalFailures)
	assert.Equal(t, 2, check.TotalAttempts)
}
