package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pvoronin/claimroute/internal/model"
)

// Entry describes one routing destination: its stable target, the name
// external systems know it by, and the roles allowed to hold claims
// routed there. EligibleRoles is ordered; the first role is the default
// assignee when no human override is supplied.
type Entry struct {
	Target        model.RoutingTarget `yaml:"-"`
	TargetID      string              `yaml:"target"`
	DisplayName   string              `yaml:"display_name"`
	EligibleRoles []string            `yaml:"eligible_roles"`
	Description   string              `yaml:"description,omitempty"`
}

// Catalog is the read-only registry of routing destinations. Constructed
// once and injected; never mutated at request time, so lookups need no
// synchronization.
type Catalog struct {
	entries  map[model.RoutingTarget]Entry
	ordered  []model.RoutingTarget
	revision int64
}

// New builds a catalog from explicit entries, enforcing the
// configuration-integrity invariant that every entry has at least one
// eligible role.
func New(revision int64, entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries:  make(map[model.RoutingTarget]Entry, len(entries)),
		revision: revision,
	}

	for _, e := range entries {
		if e.TargetID != "" {
			target, err := model.ParseTargetID(e.TargetID)
			if err != nil {
				return nil, fmt.Errorf("catalog entry %q: %w", e.TargetID, err)
			}
			e.Target = target
		}
		if len(e.EligibleRoles) == 0 {
			return nil, fmt.Errorf("catalog entry %q: eligible_roles must not be empty", e.Target.ID())
		}
		if e.DisplayName == "" {
			return nil, fmt.Errorf("catalog entry %q: display_name must not be empty", e.Target.ID())
		}
		if _, dup := c.entries[e.Target]; dup {
			return nil, fmt.Errorf("catalog entry %q: duplicate target", e.Target.ID())
		}
		e.TargetID = e.Target.ID()
		c.entries[e.Target] = e
		c.ordered = append(c.ordered, e.Target)
	}

	return c, nil
}

// Default returns the built-in seven-entry catalog: Health and Accident
// departments at each tier, plus the SIU fraud track.
func Default() *Catalog {
	entries := []Entry{
		{Target: model.RoutingTarget{Category: model.CategoryHealth, Tier: model.TierLow}, DisplayName: "Health Dept - Low", EligibleRoles: []string{"Junior Adjuster"}, Description: "Routine health claims"},
		{Target: model.RoutingTarget{Category: model.CategoryHealth, Tier: model.TierMid}, DisplayName: "Health Dept - Mid", EligibleRoles: []string{"Standard Adjuster"}, Description: "Moderately complex health claims"},
		{Target: model.RoutingTarget{Category: model.CategoryHealth, Tier: model.TierHigh}, DisplayName: "Health Dept - High", EligibleRoles: []string{"Senior Adjuster"}, Description: "High severity or complex health claims"},
		{Target: model.RoutingTarget{Category: model.CategoryAccident, Tier: model.TierLow}, DisplayName: "Accident Dept - Low", EligibleRoles: []string{"Junior Adjuster"}, Description: "Routine accident claims"},
		{Target: model.RoutingTarget{Category: model.CategoryAccident, Tier: model.TierMid}, DisplayName: "Accident Dept - Mid", EligibleRoles: []string{"Standard Adjuster"}, Description: "Moderately complex accident claims"},
		{Target: model.RoutingTarget{Category: model.CategoryAccident, Tier: model.TierHigh}, DisplayName: "Accident Dept - High", EligibleRoles: []string{"Senior Adjuster"}, Description: "High severity or complex accident claims"},
		{Target: model.SIUFraud, DisplayName: "SIU (Fraud)", EligibleRoles: []string{"SIU Investigator"}, Description: "Special investigations unit for suspected fraud"},
	}

	c, err := New(1, entries)
	if err != nil {
		// The built-in table is covered by tests; a failure here is a
		// programming error, not a runtime condition.
		panic(err)
	}
	return c
}

// catalogFile is the on-disk YAML shape for catalog overrides.
type catalogFile struct {
	Revision int64   `yaml:"revision"`
	Teams    []Entry `yaml:"teams"`
}

// LoadFile reads a catalog override from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if file.Revision <= 0 {
		file.Revision = 1
	}

	return New(file.Revision, file.Teams)
}

// Lookup resolves a routing target to its catalog entry. Returns
// ErrTargetNotFound for targets the catalog does not cover.
func (c *Catalog) Lookup(target model.RoutingTarget) (Entry, error) {
	entry, ok := c.entries[target]
	if !ok {
		return Entry{}, fmt.Errorf("%q: %w", target.ID(), model.ErrTargetNotFound)
	}
	return entry, nil
}

// DefaultAssignee returns the first eligible role for a target. An
// unknown target or an empty role list is a configuration-integrity
// failure surfaced as ErrTargetNotFound.
func (c *Catalog) DefaultAssignee(target model.RoutingTarget) (string, error) {
	entry, err := c.Lookup(target)
	if err != nil {
		return "", err
	}
	if len(entry.EligibleRoles) == 0 {
		return "", fmt.Errorf("%q has no eligible roles: %w", target.ID(), model.ErrTargetNotFound)
	}
	return entry.EligibleRoles[0], nil
}

// Eligible reports whether role may hold claims routed to target.
func (c *Catalog) Eligible(target model.RoutingTarget, role string) bool {
	entry, ok := c.entries[target]
	if !ok {
		return false
	}
	for _, r := range entry.EligibleRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Entries returns all catalog entries in a stable order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, target := range c.ordered {
		out = append(out, c.entries[target])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out
}

// ByDisplayName finds an entry by its display name. Used only at the
// external write-back boundary, where the legacy store matches by name.
func (c *Catalog) ByDisplayName(name string) (Entry, bool) {
	for _, e := range c.entries {
		if e.DisplayName == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Revision is the monotonically increasing catalog version recorded on
// committed assignments.
func (c *Catalog) Revision() int64 {
	return c.revision
}
