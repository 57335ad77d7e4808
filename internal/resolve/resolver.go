package resolve

import (
	"strconv"
	"strings"

	"github.com/pvoronin/claimroute/internal/model"
)

// Defaults applied when neither the ml_scores group nor the legacy
// top-level fields carry a value.
const (
	DefaultFraudScore      = 0.0
	DefaultComplexityScore = 1.0
)

// Resolver normalizes heterogeneous score representations into a
// canonical RiskScore. Resolution order per field: nested ml_scores value
// if present and non-null, else legacy top-level value, else the default.
// Missing data never raises an error; defaults guarantee totality.
type Resolver struct{}

// NewResolver creates a new score resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve derives the canonical risk-score record for a claim payload.
// Pure and idempotent: the same payload always yields the same record.
func (r *Resolver) Resolve(claim *model.ClaimPayload) model.RiskScore {
	return model.RiskScore{
		Fraud:      r.resolveFloat(claim.MLScores, "fraud_score", claim.FraudScore, DefaultFraudScore),
		Complexity: r.resolveFloat(claim.MLScores, "complexity_score", claim.ComplexityScore, DefaultComplexityScore),
		Severity:   r.resolveSeverity(claim),
	}
}

// Category resolves the claim's routing category, preferring the
// ml_scores claim_category over the declared claim type.
func (r *Resolver) Category(claim *model.ClaimPayload) model.ClaimCategory {
	if raw, ok := stringValue(claim.MLScores, "claim_category"); ok {
		return model.ParseCategory(raw)
	}
	return model.ParseCategory(claim.ClaimType)
}

func (r *Resolver) resolveFloat(scores map[string]interface{}, key string, legacy *float64, def float64) float64 {
	if v, ok := floatValue(scores, key); ok {
		return v
	}
	if legacy != nil {
		return *legacy
	}
	return def
}

func (r *Resolver) resolveSeverity(claim *model.ClaimPayload) model.Severity {
	if raw, ok := stringValue(claim.MLScores, "severity_level"); ok {
		return model.ParseSeverity(raw)
	}
	if claim.SeverityLevel != nil {
		return model.ParseSeverity(*claim.SeverityLevel)
	}
	return model.SeverityLow
}

// floatValue pulls a numeric value out of the loosely typed score group.
// Older ingesters emit numbers as strings, so both shapes are accepted.
func floatValue(scores map[string]interface{}, key string) (float64, bool) {
	raw, ok := scores[key]
	if !ok || raw == nil {
		return 0, false
	}

	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func stringValue(scores map[string]interface{}, key string) (string, bool) {
	raw, ok := scores[key]
	if !ok || raw == nil {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
