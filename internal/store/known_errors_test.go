package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureStableAcrossIntegersAndQuotedStrings(t *testing.T) {
	a := Signature(`TypeError: cannot read property "foo" of user 42`)
	b := Signature(`TypeError: cannot read property "bar" of user 99`)
	assert.Equal(t, a, b)
}

func TestSignatureCollapsesWhitespaceAndTruncates(t *testing.T) {
	long := "error:   " + string(make([]byte, 200))
	sig := Signature(long)
	assert.NotContains(t, sig, "  ")
	assert.LessOrEqual(t, len(sig), maxSignatureLen)
}

func TestKnownErrorRegistryRecordCreatesAndIncrements(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	reg := NewKnownErrorRegistry(s)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Record(`nil pointer at line 10`, now))
	require.NoError(t, reg.Record(`nil pointer at line 99`, now.Add(time.Hour)))

	all, err := reg.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].Occurrences)
}

func TestKnownErrorRegistryMarkResolved(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	reg := NewKnownErrorRegistry(s)

	now := time.Now()
	require.NoError(t, reg.Record("boom at 1", now))
	sig := Signature("boom at 1")
	require.NoError(t, reg.MarkResolved(sig, "spec-123", now))

	all, err := reg.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotNil(t, all[0].ResolvedAt)
	assert.Equal(t, "spec-123", all[0].ResolvingSpecID)
}

func TestDrainErrorLogIsNoOpOnEmptyLog(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	reg := NewKnownErrorRegistry(s)

	n, err := reg.DrainErrorLog(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDrainErrorLogRecordsEachLineAndTruncates(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	reg := NewKnownErrorRegistry(s)

	require.NoError(t, AppendErrorLog(s.Layout, "error A at 1"))
	require.NoError(t, AppendErrorLog(s.Layout, "error B at 2"))

	n, err := reg.DrainErrorLog(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines, err := readLines(s.Layout.ErrorLog)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
