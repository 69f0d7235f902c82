package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vipul43/tmdb-sync-worker/internal/models"
	"github.com/vipul43/tmdb-sync-worker/internal/service"
)

func TestPrometheusRecorder_Counters(t *testing.T) {
	r := NewPrometheusRecorder()

	r.BatchFinished(service.OutcomeCommitted, 2*time.Second)
	r.BatchFinished(service.OutcomeCommitted, time.Second)
	r.BatchFinished(service.OutcomeFailed, time.Second)
	r.BatchRetried()
	r.PagesFetched(5)
	r.PagesFetched(5)
	r.ItemsUpserted(200)
	r.SyncError(models.ErrorTypeProvider)
	r.Checkpoint("tmdb-popular", 5)
	r.Checkpoint("tmdb-popular", 10)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.batches.WithLabelValues(service.OutcomeCommitted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.batches.WithLabelValues(service.OutcomeFailed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.batchRetries))
	assert.Equal(t, float64(10), testutil.ToFloat64(r.pages))
	assert.Equal(t, float64(200), testutil.ToFloat64(r.items))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.errors.WithLabelValues("PROVIDER")))
	assert.Equal(t, float64(10), testutil.ToFloat64(r.checkpoint.WithLabelValues("tmdb-popular")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.batchDuration))
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	r := NewPrometheusRecorder()
	r.ItemsUpserted(3)

	server := httptest.NewServer(r.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "tmdb_sync_items_upserted_total 3"))
}
