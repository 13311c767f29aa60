// Package health checks the dependencies a provenance runtime relies on.
//
// A Checker runs registered checks concurrently, each under its own
// timeout, and aggregates them: a failing critical check makes the whole
// runtime unhealthy, a failing optional one only degrades it. The same
// results back the CLI health command and the /healthz and /readyz
// endpoints served next to /metrics.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"typeproof/internal/cache"
	"typeproof/internal/store"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// DefaultTimeout bounds a check registered without its own timeout.
const DefaultTimeout = 5 * time.Second

// CheckResult represents the result of a health check.
type CheckResult struct {
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration_ns"`
	Error       string         `json:"error,omitempty"`
}

// Check performs one health check.
type Check func(ctx context.Context) CheckResult

// Component is a named, health-checkable dependency.
type Component struct {
	Name     string
	Critical bool // failure makes the overall status unhealthy
	Check    Check
	Timeout  time.Duration
}

// Report is the aggregated outcome of one Run.
type Report struct {
	Status     Status                 `json:"status"`
	Components map[string]CheckResult `json:"components,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Names returns the component names in sorted order.
func (r Report) Names() []string {
	names := make([]string, 0, len(r.Components))
	for n := range r.Components {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Checker manages health checks.
type Checker struct {
	mu         sync.RWMutex
	components map[string]*Component
	now        func() time.Time
}

// NewChecker creates an empty Checker.
func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]*Component),
		now:        time.Now,
	}
}

// Register adds or replaces a component.
func (c *Checker) Register(component *Component) {
	if component.Timeout <= 0 {
		component.Timeout = DefaultTimeout
	}
	c.mu.Lock()
	c.components[component.Name] = component
	c.mu.Unlock()
}

// RegisterFunc registers a check with the default timeout.
func (c *Checker) RegisterFunc(name string, critical bool, check Check) {
	c.Register(&Component{Name: name, Critical: critical, Check: check})
}

// Run executes every registered check concurrently and aggregates them.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	components := make([]*Component, 0, len(c.components))
	for _, comp := range c.components {
		components = append(components, comp)
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(components))
	)
	for _, comp := range components {
		wg.Add(1)
		go func(comp *Component) {
			defer wg.Done()
			res := c.runOne(ctx, comp)
			mu.Lock()
			results[comp.Name] = res
			mu.Unlock()
		}(comp)
	}
	wg.Wait()

	return Report{
		Status:     aggregate(components, results),
		Components: results,
		Timestamp:  c.now(),
	}
}

func (c *Checker) runOne(ctx context.Context, comp *Component) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, comp.Timeout)
	defer cancel()

	start := c.now()
	done := make(chan CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- CheckResult{Status: StatusUnhealthy, Message: "check panicked", Error: fmt.Sprint(r)}
			}
		}()
		done <- comp.Check(checkCtx)
	}()

	var result CheckResult
	select {
	case result = <-done:
	case <-checkCtx.Done():
		result = CheckResult{
			Status:  StatusUnhealthy,
			Message: "check timed out",
			Error:   checkCtx.Err().Error(),
		}
	}
	result.LastChecked = start
	result.Duration = c.now().Sub(start)
	return result
}

func aggregate(components []*Component, results map[string]CheckResult) Status {
	degraded := false
	for _, comp := range components {
		switch results[comp.Name].Status {
		case StatusHealthy:
		case StatusDegraded:
			degraded = true
		default:
			if comp.Critical {
				return StatusUnhealthy
			}
			degraded = true
		}
	}
	if degraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// LivenessHandler answers 200 while the process is serving.
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "alive",
			"timestamp": c.now(),
		})
	})
}

// ReadinessHandler runs the checks and answers 503 when a critical one
// fails. ?full=true includes per-component results.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		if r.URL.Query().Get("full") != "true" {
			report.Components = nil
		}
		writeJSON(w, code, report)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// probeDocument is counted by StoreCheck; it never needs to exist.
const probeDocument = "__typeproof_health__"

// StoreCheck verifies the event store answers queries.
func StoreCheck(s store.EventStore) Check {
	return func(ctx context.Context) CheckResult {
		if _, err := s.Count(ctx, probeDocument); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "event store query failed",
				Error:   err.Error(),
			}
		}
		return CheckResult{Status: StatusHealthy, Message: "event store ok"}
	}
}

// CacheCheck verifies the report cache answers lookups. A miss is healthy;
// any other error degrades the cache since verification falls back to
// recomputing.
func CacheCheck(c cache.ReportCache) Check {
	return func(ctx context.Context) CheckResult {
		_, err := c.Get(ctx, probeDocument, "probe")
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			return CheckResult{
				Status:  StatusDegraded,
				Message: "report cache lookup failed",
				Error:   err.Error(),
			}
		}
		return CheckResult{Status: StatusHealthy, Message: "report cache ok"}
	}
}

// PingCheck wraps a connectivity probe such as a Redis or SQL ping.
func PingCheck(what string, ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: what + " unreachable",
				Error:   err.Error(),
			}
		}
		return CheckResult{Status: StatusHealthy, Message: what + " reachable"}
	}
}
