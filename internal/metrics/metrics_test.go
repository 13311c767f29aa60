package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg, "test"), reg
}

func TestRecordIngest(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordIngest(10, 2, 1, 0, 5*time.Millisecond)
	m.RecordIngest(5, 0, 0, 3, time.Millisecond)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.EventsIngested.WithLabelValues(OutcomeAppended)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsIngested.WithLabelValues(OutcomeDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsIngested.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsIngested.WithLabelValues(OutcomeTruncated)))
}

func TestRecordVerification(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordVerification("verified_high_confidence", 95, 400, 20*time.Millisecond)
	m.RecordVerification("questionable", 40, 12, time.Millisecond)
	m.RecordVerification("questionable", 35, 12, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerifyOutcome.WithLabelValues("verified_high_confidence")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.VerifyOutcome.WithLabelValues("questionable")))
}

func TestCacheLookups(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.IncrementCacheLookup(CacheHit)
	m.IncrementCacheLookup(CacheHit)
	m.IncrementCacheLookup(CacheMiss)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(CacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(CacheMiss)))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordIngest(1, 1, 1, 1, time.Second)
		m.RecordVerification("unverified", 0, 0, time.Second)
		m.IncrementCacheLookup(CacheErr)
		m.ObserveTimelineLatency(time.Second)
	})
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry(), "")
		New(prometheus.NewRegistry(), "")
	})
}

func TestHandler(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.IncrementCacheLookup(CacheHit)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `test_report_cache_lookups_total{result="hit"} 1`))
}
