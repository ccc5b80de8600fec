// Package health aggregates component health checks behind a JSON endpoint.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// ErrCheckTimeout indicates a health check did not finish in time.
var ErrCheckTimeout = errors.New("health: check timeout")

// Status represents the health status of a component.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result contains the outcome of a health check.
type Result struct {
	Status   Status
	Message  string
	Duration time.Duration
	Error    error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err}
}

// Checker is the interface for component health checks.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a named Checker from a function.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string { return f.name }

func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }

// Aggregator combines multiple checkers into one composite check.
type Aggregator struct {
	timeout  time.Duration
	mu       sync.RWMutex
	checkers []Checker
}

// NewAggregator creates an aggregator; timeout <= 0 defaults to 10s.
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Aggregator{timeout: timeout}
}

// Register adds a checker. A checker with a duplicate name replaces the
// earlier registration.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.checkers {
		if existing.Name() == c.Name() {
			a.checkers[i] = c
			return
		}
	}
	a.checkers = append(a.checkers, c)
}

// CheckAll runs every registered check in parallel and returns the results
// keyed by checker name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	checkers := make([]Checker, len(a.checkers))
	copy(checkers, a.checkers)
	a.mu.RUnlock()

	if len(checkers) == 0 {
		return map[string]Result{}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make(map[string]Result, len(checkers))
	for _, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := runCheck(ctx, c)
			mu.Lock()
			results[c.Name()] = r
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// OverallStatus reduces a result set: any unhealthy wins, then any degraded,
// otherwise healthy.
func OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

func runCheck(ctx context.Context, c Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		r := c.Check(ctx)
		r.Duration = time.Since(start)
		done <- r
	}()
	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return Result{
			Status:   StatusUnhealthy,
			Message:  "check timed out",
			Error:    ErrCheckTimeout,
			Duration: time.Since(start),
		}
	}
}

type checkResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

type healthResponse struct {
	Status string                   `json:"status"`
	Checks map[string]checkResponse `json:"checks,omitempty"`
}

// Handler serves the aggregated health state as JSON; unhealthy responses
// use 503 so load balancers can act on the status code alone.
func Handler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := agg.CheckAll(r.Context())
		status := OverallStatus(results)

		resp := healthResponse{
			Status: status.String(),
			Checks: make(map[string]checkResponse, len(results)),
		}
		for name, res := range results {
			cr := checkResponse{
				Status:   res.Status.String(),
				Message:  res.Message,
				Duration: res.Duration.String(),
			}
			if res.Error != nil {
				cr.Error = res.Error.Error()
			}
			resp.Checks[name] = cr
		}

		w.Header().Set("Content-Type", "application/json")
		if status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// DirWritable checks that a cache directory exists and accepts writes.
func DirWritable(name, dir string) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		probe, err := os.CreateTemp(dir, ".healthz-*")
		if err != nil {
			return Unhealthy(fmt.Sprintf("%s not writable", dir), err)
		}
		probe.Close()
		os.Remove(probe.Name())
		return Healthy(fmt.Sprintf("%s writable", filepath.Clean(dir)))
	})
}

// Pinger covers stores that expose a cheap reachability probe.
type Pinger interface {
	Ping() error
}

// Ping wraps a Pinger as a named checker.
func Ping(name string, p Pinger) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		if err := p.Ping(); err != nil {
			return Unhealthy("ping failed", err)
		}
		return Healthy("ok")
	})
}
