package health

import "context"

// Checker probes one dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a plain function (a cache ping, a config preflight) to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f(ctx).
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
