// Package findings defines the boundary to the scanner-result parsers.
// The parsers themselves live outside this module; training-data tooling
// consumes them purely through the Parser interface.
package findings

import "strings"

// Severity is a normalized finding severity.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
	SeverityUnknown  Severity = "unknown"
)

// Finding is one normalized vulnerability report entry, regardless of
// which scanner produced it.
type Finding struct {
	Tool        string   `json:"tool"`
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Path        string   `json:"path"`
	Line        int      `json:"line,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Remediation string   `json:"remediation,omitempty"`
}

// Parser turns one raw scanner output file into normalized findings.
type Parser interface {
	// Tool names the scanner this parser understands (e.g. "trivy").
	Tool() string
	// Parse reads the raw report at path.
	Parse(path string) ([]Finding, error)
}

// NormalizeSeverity maps the severity spellings seen across scanner
// outputs onto the fixed Severity set.
func NormalizeSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "crit":
		return SeverityCritical
	case "high", "error":
		return SeverityHigh
	case "medium", "med", "moderate", "warning", "warn":
		return SeverityMedium
	case "low", "minor":
		return SeverityLow
	case "info", "informational", "note", "negligible":
		return SeverityInfo
	default:
		return SeverityUnknown
	}
}

// CountBySeverity aggregates findings for dataset statistics.
func CountBySeverity(fs []Finding) map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range fs {
		counts[f.Severity]++
	}
	return counts
}
