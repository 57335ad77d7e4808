package route

import (
	"fmt"

	"github.com/pvoronin/claimroute/internal/model"
)

// FraudThreshold routes a claim to SIU regardless of every other signal.
// The comparison is inclusive.
const FraudThreshold = 0.6

// Complexity band edges. Bands are closed on the lower side:
// [0, 2.0) Low, [2.0, 3.5) Mid, [3.5, inf) High.
const (
	ComplexityMidThreshold  = 2.0
	ComplexityHighThreshold = 3.5
)

// Engine computes the recommended routing target for a claim from its
// canonical risk score and category. Deterministic, pure and total:
// every well-formed input yields a valid target, never an error.
type Engine struct{}

// NewEngine creates a new routing rule engine
func NewEngine() *Engine {
	return &Engine{}
}

// Recommend applies the precedence rules:
//  1. fraud gate (overrides category, severity and complexity)
//  2. department from category
//  3. tier = max(complexity tier, severity tier)
func (e *Engine) Recommend(score model.RiskScore, category model.ClaimCategory) model.RoutingTarget {
	if score.Fraud >= FraudThreshold {
		return model.SIUFraud
	}

	tier := model.MaxTier(tierFromComplexity(score.Complexity), tierFromSeverity(score.Severity))

	return model.RoutingTarget{Category: category, Tier: tier}
}

// Reason builds the human-readable explanation presented alongside a
// recommendation.
func (e *Engine) Reason(score model.RiskScore, target model.RoutingTarget) string {
	if target.Fraud {
		return fmt.Sprintf("Fraud score is %.1f%% so routed to this team", score.Fraud*100)
	}
	return fmt.Sprintf("Complexity score is %.1f and Severity score is %s so routed to this team",
		score.Complexity, score.Severity)
}

func tierFromComplexity(score float64) model.Tier {
	switch {
	case score >= ComplexityHighThreshold:
		return model.TierHigh
	case score >= ComplexityMidThreshold:
		return model.TierMid
	default:
		return model.TierLow
	}
}

func tierFromSeverity(severity model.Severity) model.Tier {
	switch severity {
	case model.SeverityHigh:
		return model.TierHigh
	case model.SeverityMid:
		return model.TierMid
	default:
		return model.TierLow
	}
}
