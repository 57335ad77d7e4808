package model

import "strings"

// ClaimPayload is the raw claim document as returned by the claim store.
// Risk scores may arrive nested under ml_scores or as legacy top-level
// fields; ScoreResolver normalizes both shapes into a RiskScore.
type ClaimPayload struct {
	ClaimID     string `json:"claim_id"`
	ClaimNumber string `json:"claim_number,omitempty"`
	ClaimType   string `json:"claim_type,omitempty"`
	Claimant    string `json:"claimant,omitempty"`

	// Current assignment as the store knows it (name-based).
	Queue    string `json:"queue,omitempty"`
	Adjuster string `json:"adjuster,omitempty"`

	// Assignment version for optimistic concurrency.
	Version int64 `json:"version,omitempty"`

	// Preferred score group. Values are loosely typed on the wire
	// (numbers sometimes arrive as strings), so this stays untyped.
	MLScores map[string]interface{} `json:"ml_scores,omitempty"`

	// Legacy top-level score fields, still emitted by older ingesters.
	FraudScore      *float64 `json:"fraud_score,omitempty"`
	ComplexityScore *float64 `json:"complexity_score,omitempty"`
	SeverityLevel   *string  `json:"severity_level,omitempty"`
}

// ClaimCategory is the routing department a claim type maps to
type ClaimCategory string

const (
	CategoryHealth   ClaimCategory = "health"
	CategoryAccident ClaimCategory = "accident"
)

// ParseCategory maps a declared claim type to a routing category.
// Only medical/health claims route to the Health department; every other
// value, including unrecognized ones, deliberately falls back to Accident.
func ParseCategory(claimType string) ClaimCategory {
	switch strings.ToLower(strings.TrimSpace(claimType)) {
	case "medical", "health":
		return CategoryHealth
	default:
		return CategoryAccident
	}
}

func (c ClaimCategory) String() string {
	switch c {
	case CategoryHealth:
		return "Health"
	default:
		return "Accident"
	}
}

// Severity is the canonical severity level after resolution
type Severity int

const (
	SeverityLow  Severity = 1
	SeverityMid  Severity = 2
	SeverityHigh Severity = 3
)

// ParseSeverity case-folds a raw severity string. "high" maps to High,
// "medium" and "mid" map to Mid, and anything else (empty or
// unrecognized) falls back to Low.
func ParseSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return SeverityHigh
	case "medium", "mid":
		return SeverityMid
	default:
		return SeverityLow
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "High"
	case SeverityMid:
		return "Mid"
	default:
		return "Low"
	}
}

// RiskScore is the canonical risk-score record derived from a claim
// payload. Always fully populated: missing fields take defaults
// (fraud 0.0, complexity 1.0, severity Low). Computed fresh per
// recommendation, never cached across claims.
type RiskScore struct {
	Fraud      float64  `json:"fraud_score"`
	Complexity float64  `json:"complexity_score"`
	Severity   Severity `json:"severity_level"`
}
