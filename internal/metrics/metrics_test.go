package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsStatus(t *testing.T) {
	m := New()

	require.NoError(t, m.Track("billing").End(nil))
	err := errors.New("boom")
	require.ErrorIs(t, m.Track("billing").End(err), err)
	require.ErrorIs(t, m.Track("billing").End(err), err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("billing", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("billing", "failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.jobDuration))
}

func TestCounters(t *testing.T) {
	m := New()
	m.Message(OutcomeStored)
	m.Message(OutcomeStored)
	m.Message(OutcomeDuplicate)
	m.Reminder("sent")
	m.Debit("daily")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues(OutcomeStored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues(OutcomeDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reminders.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.debits.WithLabelValues("daily")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Message(OutcomeFailed)
	m.Reminder("failed")
	m.Debit("weekly")
	m.Request("/healthz", 200)
	assert.NoError(t, m.Track("ingest").End(nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.Message(OutcomeUnmatched)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ledgerd_ingest_messages_total{outcome="unmatched"} 1`)
}
