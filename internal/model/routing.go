package model

import (
	"fmt"
	"strings"
	"time"
)

// Tier is the skill band a routing target belongs to, ordered Low < Mid < High
type Tier int

const (
	TierLow  Tier = 1
	TierMid  Tier = 2
	TierHigh Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "High"
	case TierMid:
		return "Mid"
	default:
		return "Low"
	}
}

// MaxTier returns the higher of two tiers. The combinator is a maximum,
// not an average: severity alone can never downgrade a complexity tier.
func MaxTier(a, b Tier) Tier {
	if a >= b {
		return a
	}
	return b
}

// RoutingTarget identifies a destination queue: a (category, tier) pair,
// or the category-less SIU fraud-investigation track. The zero tier with
// Fraud set is the only valid shape for the sentinel.
type RoutingTarget struct {
	Category ClaimCategory `json:"category,omitempty" yaml:"category,omitempty"`
	Tier     Tier          `json:"tier,omitempty" yaml:"tier,omitempty"`
	Fraud    bool          `json:"fraud,omitempty" yaml:"fraud,omitempty"`
}

// SIUFraud is the sentinel target for the fraud-investigation track.
var SIUFraud = RoutingTarget{Fraud: true}

// ID returns the stable identifier persisted by the ledger,
// e.g. "health-mid" or "siu-fraud".
func (t RoutingTarget) ID() string {
	if t.Fraud {
		return "siu-fraud"
	}
	return fmt.Sprintf("%s-%s", strings.ToLower(t.Category.String()), strings.ToLower(t.Tier.String()))
}

// ParseTargetID parses a stable target id back into a RoutingTarget.
func ParseTargetID(id string) (RoutingTarget, error) {
	s := strings.ToLower(strings.TrimSpace(id))
	if s == "siu-fraud" {
		return SIUFraud, nil
	}
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return RoutingTarget{}, fmt.Errorf("malformed target id %q", id)
	}

	var category ClaimCategory
	switch parts[0] {
	case "health":
		category = CategoryHealth
	case "accident":
		category = CategoryAccident
	default:
		return RoutingTarget{}, fmt.Errorf("unknown category in target id %q", id)
	}

	var tier Tier
	switch parts[1] {
	case "low":
		tier = TierLow
	case "mid":
		tier = TierMid
	case "high":
		tier = TierHigh
	default:
		return RoutingTarget{}, fmt.Errorf("unknown tier in target id %q", id)
	}

	return RoutingTarget{Category: category, Tier: tier}, nil
}

// Recommendation is the engine's suggested routing decision for a claim,
// presented to the caller before any human override.
type Recommendation struct {
	ClaimID  string        `json:"claim_id"`
	Target   RoutingTarget `json:"target"`
	Assignee string        `json:"assignee"`
	Reason   string        `json:"reason"`
	Score    RiskScore     `json:"score"`
	Category ClaimCategory `json:"category"`

	// Version of the claim's current assignment at recommendation time,
	// to be passed back as expectedVersion on commit.
	Version int64 `json:"version"`
}

// AssignmentRecord is a committed routing decision. Exactly one record is
// current per claim; prior records are retained as an append-only audit
// trail. Version increments by one on every successful commit.
type AssignmentRecord struct {
	ClaimID  string        `json:"claim_id"`
	Target   RoutingTarget `json:"target"`
	TargetID string        `json:"target_id"`

	// Display name of the target at commit time. Kept alongside the
	// stable id because the external store matches by name; a later
	// catalog rename is detectable by comparing the two.
	TargetName string `json:"target_name"`

	Assignee    string    `json:"assignee"`
	Note        string    `json:"note,omitempty"`
	CommittedAt time.Time `json:"committed_at"`
	Version     int64     `json:"version"`

	// Catalog revision in effect when the decision was committed.
	CatalogRevision int64 `json:"catalog_revision,omitempty"`
}
