package repositories

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/personaliza/api/internal/domain"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// Probe pings one backing service (postgres, firestore, redis) for the readiness report.
type Probe struct {
	Name    string
	Timeout time.Duration
	// Optional probes degrade the report instead of failing it.
	Optional bool
	Check    func(context.Context) error
}

type probeHealthRepository struct {
	probes []Probe
	now    func() time.Time
}

// NewProbeHealthRepository runs the probes concurrently on every Collect.
func NewProbeHealthRepository(probes []Probe, clock func() time.Time) (HealthRepository, error) {
	if len(probes) == 0 {
		return nil, errors.New("health repository: at least one probe is required")
	}
	for _, probe := range probes {
		if probe.Name == "" || probe.Check == nil {
			return nil, errors.New("health repository: probes need a name and a check")
		}
	}
	if clock == nil {
		clock = time.Now
	}
	return &probeHealthRepository{probes: append([]Probe(nil), probes...), now: clock}, nil
}

func (r *probeHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	results := make(map[string]domain.SystemHealthCheck, len(r.probes))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, probe := range r.probes {
		wg.Add(1)
		go func(probe Probe) {
			defer wg.Done()
			result := r.run(ctx, probe)
			mu.Lock()
			results[probe.Name] = result
			mu.Unlock()
		}(probe)
	}
	wg.Wait()

	status := domain.HealthStatusOK
	for _, probe := range r.probes {
		switch result := results[probe.Name]; {
		case result.Status == domain.HealthStatusOK:
		case probe.Optional:
			if status == domain.HealthStatusOK {
				status = domain.HealthStatusDegraded
			}
		default:
			status = domain.HealthStatusError
		}
	}
	return domain.SystemHealthReport{Status: status, Checks: results, GeneratedAt: r.now()}, nil
}

func (r *probeHealthRepository) run(ctx context.Context, probe Probe) domain.SystemHealthCheck {
	timeout := probe.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := probe.Check(probeCtx)
	end := r.now()

	check := domain.SystemHealthCheck{Status: domain.HealthStatusOK, Detail: "ok", Latency: end.Sub(start), CheckedAt: end}
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		check.Status, check.Detail = domain.HealthStatusError, "timeout"
	default:
		check.Status, check.Detail = domain.HealthStatusError, err.Error()
	}
	return check
}
