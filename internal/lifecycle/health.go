package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// ComponentChecker runs named dependency checks. health.Checker satisfies it.
type ComponentChecker interface {
	Check(ctx context.Context) map[string]string
}

// Probes answers liveness unconditionally and readiness from component checks.
type Probes struct {
	checker ComponentChecker
	log     *slog.Logger
}

// NewProbes creates a new Probes instance. A nil checker makes every probe pass.
func NewProbes(checker ComponentChecker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// Liveness reports that the process is running.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.Debug("liveness probe called")
	return nil
}

// Readiness fails when any registered component is unhealthy.
func (p *Probes) Readiness(ctx context.Context) error {
	if p.checker == nil {
		return nil
	}

	var failed []string
	for name, status := range p.checker.Check(ctx) {
		if status != "OK" {
			failed = append(failed, fmt.Sprintf("%s: %s", name, status))
		}
	}
	if len(failed) == 0 {
		return nil
	}

	sort.Strings(failed)
	p.log.Warn("readiness probe failed", slog.Any("components", failed))
	return fmt.Errorf("not ready: %s", strings.Join(failed, "; "))
}
