package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"serve"},
		{"sync", "start"},
		{"sync", "batch"},
		{"sync", "status"},
		{"migrate", "up"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestSyncBatchCmd_RejectsInvalidFlags(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tmdb_test")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing job", []string{"sync", "batch", "--start", "1", "--end", "5"}, "--job-id is required"},
		{"zero start", []string{"sync", "batch", "--job-id", "1", "--start", "0", "--end", "5"}, "invalid page range 0-5"},
		{"end before start", []string{"sync", "batch", "--job-id", "1", "--start", "6", "--end", "5"}, "invalid page range 6-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tt.args)
			root.SetOut(&bytes.Buffer{})

			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRootCommand_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	root := newRootCmd()
	root.SetArgs([]string{"sync", "status"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestPrintStatus(t *testing.T) {
	runID := "run-1"
	errType := models.ErrorTypeProvider
	msg := "Service Unavailable"
	code := 503

	job := &models.SyncJob{
		ID:               4,
		JobName:          "tmdb-popular",
		LastPageSynced:   10,
		Status:           models.SyncStatusFailed,
		CurrentRunID:     &runID,
		LastErrorType:    &errType,
		LastErrorMessage: &msg,
		LastErrorCode:    &code,
	}
	summary := models.RunSummary{Completed: 2, Failed: 1}
	recent := []models.SyncErrorLog{{
		Page:       11,
		ErrorType:  models.ErrorTypeProvider,
		Message:    msg,
		Code:       &code,
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}

	var out bytes.Buffer
	require.NoError(t, printStatus(&out, job, summary, 400, recent))

	text := out.String()
	assert.Contains(t, text, "tmdb-popular (id 4)")
	assert.Contains(t, text, "FAILED")
	assert.Contains(t, text, "run-1")
	assert.Contains(t, text, "0 pending, 0 processing, 2 completed, 1 failed, 0 cancelled")
	assert.Contains(t, text, "PROVIDER [503] Service Unavailable")
	assert.Contains(t, text, "2026-01-02T03:04:05Z")
	assert.Contains(t, text, "400")
}

func TestPrintStatus_NoRun(t *testing.T) {
	job := &models.SyncJob{ID: 1, JobName: "tmdb-popular", Status: models.SyncStatusPending}

	var out bytes.Buffer
	require.NoError(t, printStatus(&out, job, models.RunSummary{}, 0, nil))

	assert.NotContains(t, out.String(), "Current run")
	assert.NotContains(t, out.String(), "OCCURRED")
}
