// Package probe defines the result schemas sneebly consumes from the host
// app's external boundary: crawl output, integration-health snapshots, and
// runtime-probe verdicts. None of these are collected here — the crawler,
// the integration-health checker, and the process supervisor are owned by
// the host per spec.md §1's "these are out of scope for this spec;
// sneebly only consumes their result schema" framing. This package is the
// typed contract the Constraint Solver, the Heartbeat Orchestrator, and the
// Code Engine's runtime verification all read.
package probe

import "time"

// Severity classifies one crawl or integration finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Finding is one observation surfaced by a crawl or integration-health
// pass: a broken link, a 5xx response, a console error, a failed webhook.
type Finding struct {
	Source      string    `json:"source"` // "crawl" | "integration"
	Severity    Severity  `json:"severity"`
	Page        string    `json:"page,omitempty"`
	Message     string    `json:"message"`
	StatusCode  int       `json:"statusCode,omitempty"`
	DetectedAt  time.Time `json:"detectedAt"`
}

// IsAuthNoise reports whether a finding is a 401/403 that should be
// pre-filtered from evidence assembly rather than treated as a genuine
// regression — the host routinely returns these for pages that require a
// session the crawler doesn't carry.
func (f Finding) IsAuthNoise() bool {
	return f.StatusCode == 401 || f.StatusCode == 403
}

// CrawlResult is one pass of the host's page crawler across its declared
// VerificationPages.
type CrawlResult struct {
	RunAt    time.Time `json:"runAt"`
	Pages    []string  `json:"pages"`
	Findings []Finding `json:"findings"`
}

// IntegrationHealth is a snapshot of the host's external dependency
// checks (database, queue, third-party API reachability).
type IntegrationHealth struct {
	CheckedAt time.Time `json:"checkedAt"`
	Findings  []Finding `json:"findings"`
}

// RuntimeVerdict is the outcome of one runtime-probe pass: either the
// health endpoint answered, or a crash marker was observed in the
// supervised process's output. Shares the Healthy and CrashMarker fields of
// codeengine.RuntimeResult; the two are distinct types.
type RuntimeVerdict struct {
	Healthy     bool      `json:"healthy"`
	CrashMarker string    `json:"crashMarker,omitempty"`
	CheckedAt   time.Time `json:"checkedAt"`
}

// Collector is the external boundary sneebly depends on but never
// implements: something else (the host app, a sidecar, an operator script)
// runs the actual crawl, checks the actual integrations, and supervises the
// actual process, and hands back these result shapes.
type Collector interface {
	Crawl(pages []string) (CrawlResult, error)
	CheckIntegrations() (IntegrationHealth, error)
	ProbeRuntime(healthURL string) (RuntimeVerdict, error)
}

// FilterAuthNoise drops 401/403 findings, returning only what ELON's
// observe step should treat as evidence of an actual regression.
func FilterAuthNoise(findings []Finding) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.IsAuthNoise() {
			continue
		}
		out = append(out, f)
	}
	return out
}

// BySeverityAtLeast filters findings to those at or above min, using the
// fixed ordering info < warning < error < critical.
func BySeverityAtLeast(findings []Finding, min Severity) []Finding {
	rank := map[Severity]int{
		SeverityInfo: 0, SeverityWarning: 1, SeverityError: 2, SeverityCritical: 3,
	}
	threshold := rank[min]
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if rank[f.Severity] >= threshold {
			out = append(out, f)
		}
	}
	return out
}
