package codeengine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollHealthSucceedsOnHealthyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := PollHealth(context.Background(), srv.URL, time.Second, 10*time.Millisecond)
	assert.True(t, result.Healthy)
	assert.NoError(t, result.Err)
}

func TestPollHealthTimesOutOnUnhealthyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	result := PollHealth(context.Background(), srv.URL, 60*time.Millisecond, 10*time.Millisecond)
	assert.False(t, result.Healthy)
	assert.Error(t, result.Err)
}

func TestSpawnAndWatchDetectsCrashMarkerInOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	result := SpawnAndWatch(context.Background(), "/bin/sh", []string{"-c", "echo 'FATAL: boom'; sleep 5"}, nil, t.TempDir(), srv.URL, 2*time.Second)
	assert.NotEmpty(t, result.CrashMarker)
}

func TestSpawnAndWatchReportsHealthyWhenProcessComesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := SpawnAndWatch(context.Background(), "/bin/sh", []string{"-c", "sleep 5"}, nil, t.TempDir(), srv.URL, 2*time.Second)
	assert.True(t, result.Healthy)
}
