// Package units converts soil measurements between display units and the
// canonical unit each chemistry formula is written in.
package units

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lox/soilcalc/internal/models"
)

// UnitConfig describes one unit of a nutrient. Factor converts a value in
// this unit to the canonical unit by multiplication.
type UnitConfig struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Factor float64 `json:"factor"`
}

type NutrientUnits struct {
	Canonical string       `json:"canonical"`
	Units     []UnitConfig `json:"units"`
}

// Selection maps a nutrient to the unit the user entered it in.
type Selection map[models.Nutrient]string

// Observer is told about conversions that fell back to identity because the
// nutrient or unit is not registered.
type Observer interface {
	UnknownUnit(nutrient models.Nutrient, unit string)
}

// Registry is immutable once built. Use WithObserver to attach diagnostics.
type Registry struct {
	order     []models.Nutrient
	nutrients map[models.Nutrient]NutrientUnits
	observer  Observer
}

// NewRegistry validates defs and builds a registry. Every nutrient needs
// exactly one canonical unit, and that unit's factor must be 1.
func NewRegistry(defs map[models.Nutrient]NutrientUnits, order []models.Nutrient) (*Registry, error) {
	r := &Registry{nutrients: make(map[models.Nutrient]NutrientUnits, len(defs))}

	for n, def := range defs {
		seen := make(map[string]bool, len(def.Units))
		canonical := 0
		for _, u := range def.Units {
			if u.ID == "" {
				return nil, fmt.Errorf("nutrient %s: unit with empty id", n)
			}
			if seen[u.ID] {
				return nil, fmt.Errorf("nutrient %s: duplicate unit %q", n, u.ID)
			}
			seen[u.ID] = true
			if u.Factor <= 0 {
				return nil, fmt.Errorf("nutrient %s: unit %q has factor %v", n, u.ID, u.Factor)
			}
			if u.ID == def.Canonical {
				canonical++
				if u.Factor != 1 {
					return nil, fmt.Errorf("nutrient %s: canonical unit %q has factor %v, want 1", n, u.ID, u.Factor)
				}
			}
		}
		if canonical != 1 {
			return nil, fmt.Errorf("nutrient %s: canonical unit %q not defined", n, def.Canonical)
		}
		r.nutrients[n] = NutrientUnits{
			Canonical: def.Canonical,
			Units:     append([]UnitConfig(nil), def.Units...),
		}
	}

	listed := make(map[models.Nutrient]bool, len(order))
	for _, n := range order {
		if _, ok := r.nutrients[n]; ok && !listed[n] {
			r.order = append(r.order, n)
			listed[n] = true
		}
	}
	var rest []models.Nutrient
	for n := range r.nutrients {
		if !listed[n] {
			rest = append(rest, n)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	r.order = append(r.order, rest...)

	return r, nil
}

// WithObserver returns a registry sharing the same tables that reports
// identity fallbacks to o.
func (r *Registry) WithObserver(o Observer) *Registry {
	return &Registry{order: r.order, nutrients: r.nutrients, observer: o}
}

// lookupFactor is the only place unknown nutrients and units are resolved.
// When ok is false callers must leave the value unchanged.
func (r *Registry) lookupFactor(n models.Nutrient, unit string) (factor float64, ok bool) {
	if factor, ok := r.find(n, unit); ok {
		return factor, true
	}
	if r.observer != nil {
		r.observer.UnknownUnit(n, unit)
	}
	return 1, false
}

func (r *Registry) find(n models.Nutrient, unit string) (float64, bool) {
	def, ok := r.nutrients[n]
	if !ok {
		return 0, false
	}
	id := strings.TrimSpace(unit)
	for _, u := range def.Units {
		if u.ID == id {
			return u.Factor, true
		}
	}
	return 0, false
}

// Has reports whether unit is registered for n. It never notifies the
// observer.
func (r *Registry) Has(n models.Nutrient, unit string) bool {
	_, ok := r.find(n, unit)
	return ok
}

// ToCanonical converts value from unit to the nutrient's canonical unit.
// Unknown nutrients or units return value unchanged.
func (r *Registry) ToCanonical(value float64, n models.Nutrient, unit string) float64 {
	factor, ok := r.lookupFactor(n, unit)
	if !ok {
		return value
	}
	return value * factor
}

// FromCanonical converts a canonical value back to unit.
// Unknown nutrients or units return value unchanged.
func (r *Registry) FromCanonical(value float64, n models.Nutrient, unit string) float64 {
	factor, ok := r.lookupFactor(n, unit)
	if !ok {
		return value
	}
	return value / factor
}

// Label returns the display label of unit, or "" if it is not registered.
func (r *Registry) Label(n models.Nutrient, unit string) string {
	def, ok := r.nutrients[n]
	if !ok {
		return ""
	}
	for _, u := range def.Units {
		if u.ID == unit {
			return u.Label
		}
	}
	return ""
}

// Canonical returns the canonical unit id for n.
func (r *Registry) Canonical(n models.Nutrient) (string, bool) {
	def, ok := r.nutrients[n]
	return def.Canonical, ok
}

// DefaultUnits selects the canonical unit for every registered nutrient.
func (r *Registry) DefaultUnits() Selection {
	sel := make(Selection, len(r.nutrients))
	for n, def := range r.nutrients {
		sel[n] = def.Canonical
	}
	return sel
}

// Nutrients lists registered nutrients in display order.
func (r *Registry) Nutrients() []models.Nutrient {
	return append([]models.Nutrient(nil), r.order...)
}

// Units returns a copy of the unit list for n.
func (r *Registry) Units(n models.Nutrient) []UnitConfig {
	return append([]UnitConfig(nil), r.nutrients[n].Units...)
}

// MilligramsPerCmolc is the equivalence weight of n: the mass in mg/dm³ that
// carries 1 cmolc/dm³ of charge, derived from the registered factors. It
// returns 0 if either unit is missing.
func (r *Registry) MilligramsPerCmolc(n models.Nutrient) float64 {
	cmolc, ok := r.find(n, CmolcDm3)
	if !ok {
		return 0
	}
	mg, ok := r.find(n, MgDm3)
	if !ok {
		return 0
	}
	return cmolc / mg
}

// SampleToCanonical returns a copy of s with every field listed in sel
// converted to canonical units. Unset fields stay unset and fields missing
// from sel are not touched.
func (r *Registry) SampleToCanonical(s models.SoilSample, sel Selection) models.SoilSample {
	out := s.Clone()
	if out.Units == nil && len(sel) > 0 {
		out.Units = make(map[models.Nutrient]string, len(sel))
	}

	for n, unit := range sel {
		field := out.Field(n)
		if field == nil {
			continue
		}
		if field.Valid {
			field.Float64 = r.ToCanonical(field.Float64, n, unit)
		}
		if canonical, ok := r.Canonical(n); ok {
			if _, known := r.find(n, unit); known {
				out.Units[n] = canonical
			}
		}
	}
	return out
}
