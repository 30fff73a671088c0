package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds each individual probe.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type namedChecker struct {
	name    string
	checker Checker
}

// Service coordinates health checks.
type Service struct {
	checks  []namedChecker
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Service with no checks registered.
func New(timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{timeout: timeout, logger: logger}
}

// Add registers a named check. Nil checkers are ignored so optional components can be passed as-is.
func (s *Service) Add(name string, c Checker) *Service {
	if c != nil {
		s.checks = append(s.checks, namedChecker{name: name, checker: c})
	}
	return s
}

// Check runs every registered probe concurrently.
// Status is Unhealthy when all probes fail, Degraded when some do.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	if len(s.checks) == 0 {
		return Report{Status: Healthy, Checks: checks}
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, nc := range s.checks {
		wg.Add(1)
		go func(nc namedChecker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			result := CheckOK
			if err := nc.checker.HealthCheck(cctx); err != nil {
				s.logger.Warn("Health check failed", zap.String("check", nc.name), zap.Error(err))
				result = CheckError
			}
			mu.Lock()
			checks[nc.name] = result
			mu.Unlock()
		}(nc)
	}
	wg.Wait()

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
