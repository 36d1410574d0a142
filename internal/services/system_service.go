package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/repositories"
)

const (
	paymentBacklogCheck     = "payment_backlog"
	defaultBacklogAge       = 30 * time.Minute
	defaultBacklogThreshold = 20
)

// BuildInfo is the release metadata reported on /readyz.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps wires the readiness report.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	// Orders enables the payment backlog check. Optional.
	Orders repositories.OrderRepository
	// BacklogAge is how long a gateway payment may stay unconfirmed before it counts as backlog.
	BacklogAge time.Duration
	// BacklogThreshold is the backlog size that degrades the report.
	BacklogThreshold int
	Clock            func() time.Time
	Build            BuildInfo
}

type systemService struct {
	health    repositories.HealthRepository
	orders    repositories.OrderRepository
	age       time.Duration
	threshold int
	clock     func() time.Time
	build     BuildInfo
}

var _ SystemService = (*systemService)(nil)

// NewSystemService builds the service behind /readyz.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	age := deps.BacklogAge
	if age <= 0 {
		age = defaultBacklogAge
	}
	threshold := deps.BacklogThreshold
	if threshold <= 0 {
		threshold = defaultBacklogThreshold
	}
	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}
	return &systemService{
		health:    deps.HealthRepository,
		orders:    deps.Orders,
		age:       age,
		threshold: threshold,
		clock:     func() time.Time { return clock().UTC() },
		build:     build,
	}, nil
}

// HealthReport merges dependency probes with the payment backlog check and release metadata.
func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	report, err := s.health.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.clock()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	if report.Checks == nil {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}
	if s.orders != nil {
		report.Checks[paymentBacklogCheck] = s.backlogCheck(ctx, now)
	}

	report.Version = firstNonBlank(report.Version, s.build.Version)
	report.CommitSHA = firstNonBlank(report.CommitSHA, s.build.CommitSHA)
	report.Environment = firstNonBlank(report.Environment, s.build.Environment)
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	report.Status = worstStatus(report.Status, report.Checks)
	return report, nil
}

// backlogCheck counts pending orders whose payment has waited longer than s.age. Reaching the
// threshold means webhooks are not arriving and the reconcile sweep is not keeping up.
func (s *systemService) backlogCheck(ctx context.Context, now time.Time) domain.SystemHealthCheck {
	started := time.Now()
	orders, err := s.orders.ListAwaitingPayment(ctx, now.Add(-s.age), s.threshold)
	check := domain.SystemHealthCheck{CheckedAt: now, Latency: time.Since(started)}
	switch {
	case err != nil:
		check.Status = domain.HealthStatusDegraded
		check.Detail = fmt.Sprintf("backlog query failed: %v", err)
	case len(orders) >= s.threshold:
		check.Status = domain.HealthStatusDegraded
		check.Detail = fmt.Sprintf("%d+ orders awaiting payment confirmation for over %s", len(orders), s.age)
	default:
		check.Status = domain.HealthStatusOK
		check.Detail = fmt.Sprintf("%d orders awaiting payment confirmation for over %s", len(orders), s.age)
	}
	return check
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func worstStatus(current string, checks map[string]domain.SystemHealthCheck) string {
	rank := map[string]int{"": 0, domain.HealthStatusOK: 0, domain.HealthStatusDegraded: 1, domain.HealthStatusError: 2}
	worst := domain.HealthStatusOK
	if rank[current] > 0 {
		worst = current
	}
	for _, check := range checks {
		if r, ok := rank[check.Status]; ok && r > rank[worst] {
			worst = check.Status
		} else if !ok && rank[worst] < 1 {
			worst = domain.HealthStatusDegraded
		}
	}
	return worst
}
