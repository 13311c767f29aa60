package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeproof/internal/cache"
	"typeproof/internal/store"
	"typeproof/internal/verify"
)

func healthy(context.Context) CheckResult   { return CheckResult{Status: StatusHealthy} }
func unhealthy(context.Context) CheckResult { return CheckResult{Status: StatusUnhealthy} }

// =============================================================================
// Aggregation
// =============================================================================

func TestRunAllHealthy(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("store", true, healthy)
	c.RegisterFunc("cache", false, healthy)

	r := c.Run(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Equal(t, []string{"cache", "store"}, r.Names())
}

func TestOptionalFailureDegrades(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("store", true, healthy)
	c.RegisterFunc("cache", false, unhealthy)

	assert.Equal(t, StatusDegraded, c.Run(context.Background()).Status)
}

func TestCriticalFailureIsUnhealthy(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("store", true, unhealthy)
	c.RegisterFunc("cache", false, healthy)

	assert.Equal(t, StatusUnhealthy, c.Run(context.Background()).Status)
}

func TestEmptyCheckerIsHealthy(t *testing.T) {
	assert.Equal(t, StatusHealthy, NewChecker().Run(context.Background()).Status)
}

func TestCheckTimeout(t *testing.T) {
	c := NewChecker()
	c.Register(&Component{
		Name:     "slow",
		Critical: true,
		Timeout:  20 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		},
	})

	r := c.Run(context.Background())
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Equal(t, "check timed out", r.Components["slow"].Message)
}

func TestCheckPanicRecovered(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("boom", true, func(context.Context) CheckResult { panic("kaboom") })

	r := c.Run(context.Background())
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Equal(t, "kaboom", r.Components["boom"].Error)
}

// =============================================================================
// Dependency checks
// =============================================================================

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, string) (*verify.Report, error) {
	return nil, errors.New("connection refused")
}
func (brokenCache) Set(context.Context, string, string, *verify.Report) error { return nil }
func (brokenCache) InvalidateDocument(context.Context, string) error          { return nil }

func TestStoreCheck(t *testing.T) {
	res := StoreCheck(store.NewMemoryStore(store.Limits{}))(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
}

func TestCacheCheck(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, StatusHealthy, CacheCheck(cache.NewMemoryCache())(ctx).Status)
	assert.Equal(t, StatusHealthy, CacheCheck(cache.Nop{})(ctx).Status)

	res := CacheCheck(brokenCache{})(ctx)
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Contains(t, res.Error, "connection refused")
}

func TestPingCheck(t *testing.T) {
	ctx := context.Background()
	ok := PingCheck("redis", func(context.Context) error { return nil })(ctx)
	assert.Equal(t, StatusHealthy, ok.Status)

	bad := PingCheck("redis", func(context.Context) error { return errors.New("dial tcp") })(ctx)
	assert.Equal(t, StatusUnhealthy, bad.Status)
	assert.Equal(t, "redis unreachable", bad.Message)
}

// =============================================================================
// HTTP handlers
// =============================================================================

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alive"`)
}

func TestReadinessHandler(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("store", true, healthy)

	rec := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var r Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Empty(t, r.Components)

	rec = httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz?full=true", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Contains(t, r.Components, "store")
}

func TestReadinessHandlerUnavailable(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("store", true, unhealthy)

	rec := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
