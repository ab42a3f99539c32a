// Package health aggregates named readiness checks into a single report.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Static errors for health package
var (
	ErrCheckNameEmpty     = errors.New("health check name is empty")
	ErrCheckNil           = errors.New("health check is nil")
	ErrCheckAlreadyExists = errors.New("health check already registered")
)

// Status is the outcome of a check or of the whole report.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// DefaultTimeout bounds each check when the caller's context has no deadline.
const DefaultTimeout = 5 * time.Second

// Check reports a problem by returning an error.
type Check func(ctx context.Context) error

// Result is the outcome of a single check.
type Result struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Report is the outcome of every registered check. Checks are sorted by name.
type Report struct {
	Status    Status    `json:"status"`
	CheckedAt time.Time `json:"checked_at"`
	Checks    []Result  `json:"checks"`
}

// Aggregator runs registered checks concurrently.
type Aggregator struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

// NewAggregator creates an aggregator. A non-positive timeout uses DefaultTimeout.
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Aggregator{
		checks:  make(map[string]Check),
		timeout: timeout,
	}
}

// Register adds a named check.
func (a *Aggregator) Register(name string, check Check) error {
	if name == "" {
		return ErrCheckNameEmpty
	}
	if check == nil {
		return fmt.Errorf("%w: %s", ErrCheckNil, name)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.checks[name]; exists {
		return fmt.Errorf("%w: %s", ErrCheckAlreadyExists, name)
	}
	a.checks[name] = check
	return nil
}

// Unregister removes a check. Unknown names are ignored.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.checks, name)
}

// Check runs every registered check. The report is healthy only if every
// check is; an empty aggregator is healthy.
func (a *Aggregator) Check(ctx context.Context) Report {
	a.mu.RLock()
	names := make([]string, 0, len(a.checks))
	for name := range a.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(a.checks))
	for name, check := range a.checks {
		checks[name] = check
	}
	a.mu.RUnlock()
	slices.Sort(names)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]Result, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = run(ctx, name, checks[name])
		}()
	}
	wg.Wait()

	report := Report{Status: StatusHealthy, CheckedAt: time.Now(), Checks: results}
	for _, r := range results {
		if r.Status != StatusHealthy {
			report.Status = StatusUnhealthy
			break
		}
	}
	return report
}

func run(ctx context.Context, name string, check Check) (result Result) {
	result = Result{Name: name, Status: StatusHealthy}
	defer func() {
		if r := recover(); r != nil {
			result.Status = StatusUnhealthy
			result.Error = fmt.Sprintf("check panicked: %v", r)
		}
	}()
	if err := check(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}

// Handler serves the report as JSON: 200 when healthy, 503 otherwise.
func (a *Aggregator) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := a.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status != StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
}
