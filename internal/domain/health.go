package domain

import (
	"sort"
	"time"
)

// Health states, ordered from best to worst.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck is the probe result for one dependency.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// OK reports whether the probe passed.
func (c SystemHealthCheck) OK() bool {
	return c.Status == HealthStatusOK
}

// SystemHealthReport aggregates dependency probes for the readiness endpoint.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// CheckNames returns the probe names in lexical order.
func (r SystemHealthReport) CheckNames() []string {
	names := make([]string, 0, len(r.Checks))
	for name := range r.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Failures lists "name: detail" for every failing probe that carries a detail, ordered by name.
func (r SystemHealthReport) Failures() []string {
	var out []string
	for _, name := range r.CheckNames() {
		check := r.Checks[name]
		if !check.OK() && check.Detail != "" {
			out = append(out, name+": "+check.Detail)
		}
	}
	return out
}
