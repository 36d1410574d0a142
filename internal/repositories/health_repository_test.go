package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/personaliza/api/internal/domain"
)

func TestProbeHealthRepositoryCollectSuccess(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	repo, err := NewProbeHealthRepository([]Probe{
		{Name: "postgres", Check: func(context.Context) error { return nil }},
		{Name: "firestore", Check: func(context.Context) error { return nil }},
	}, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewProbeHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok, got %s", report.Status)
	}
	if len(report.Checks) != 2 || report.GeneratedAt != now {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestProbeHealthRepositoryOptionalFailureDegrades(t *testing.T) {
	repo, err := NewProbeHealthRepository([]Probe{
		{Name: "postgres", Check: func(context.Context) error { return nil }},
		{Name: "redis", Optional: true, Check: func(context.Context) error { return errors.New("connection refused") }},
	}, nil)
	if err != nil {
		t.Fatalf("NewProbeHealthRepository: %v", err)
	}

	report, _ := repo.Collect(context.Background())
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Checks["redis"].Detail != "connection refused" {
		t.Fatalf("unexpected detail %q", report.Checks["redis"].Detail)
	}
}

func TestProbeHealthRepositoryTimeout(t *testing.T) {
	repo, err := NewProbeHealthRepository([]Probe{{
		Name:    "postgres",
		Timeout: 5 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}, nil)
	if err != nil {
		t.Fatalf("NewProbeHealthRepository: %v", err)
	}

	report, _ := repo.Collect(context.Background())
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error, got %s", report.Status)
	}
	if report.Checks["postgres"].Detail != "timeout" {
		t.Fatalf("expected timeout detail, got %q", report.Checks["postgres"].Detail)
	}
}

func TestNewProbeHealthRepositoryValidates(t *testing.T) {
	if _, err := NewProbeHealthRepository(nil, nil); err == nil {
		t.Fatalf("expected error for empty probes")
	}
	if _, err := NewProbeHealthRepository([]Probe{{Name: "x"}}, nil); err == nil {
		t.Fatalf("expected error for missing check")
	}
}
