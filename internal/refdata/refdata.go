// Package refdata holds the static agronomic tables the chemistry engine
// reads: crop targets, clay interpretation bands, dosage constants and
// fertilizer sources. Tables are built once at startup and never mutated.
package refdata

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/lox/soilcalc/internal/models"
	"github.com/lox/soilcalc/internal/units"
)

type Tables struct {
	registry    *units.Registry
	crops       []models.CropProfile
	cropIndex   map[string]int
	bands       []models.ClayBand
	agronomy    models.Agronomy
	fertilizers []models.FertilizerSource
}

// Defaults returns the built-in tables.
func Defaults() *Tables {
	t, err := New(units.Default(), defaultCrops, defaultClayBands, defaultAgronomy(), defaultFertilizers)
	if err != nil {
		panic(fmt.Sprintf("refdata: built-in tables invalid: %v", err))
	}
	return t
}

// New validates and copies the given tables.
func New(registry *units.Registry, crops []models.CropProfile, bands []models.ClayBand, agro models.Agronomy, fertilizers []models.FertilizerSource) (*Tables, error) {
	if registry == nil {
		return nil, fmt.Errorf("unit registry required")
	}
	if err := validateCrops(crops); err != nil {
		return nil, err
	}
	sortedBands := append([]models.ClayBand(nil), bands...)
	sort.Slice(sortedBands, func(i, j int) bool { return sortedBands[i].MinClay < sortedBands[j].MinClay })
	if err := validateBands(sortedBands); err != nil {
		return nil, err
	}
	if err := validateAgronomy(agro); err != nil {
		return nil, err
	}
	for _, f := range fertilizers {
		if f.Content <= 0 || f.Content > 100 {
			return nil, fmt.Errorf("fertilizer %q: content %v out of range", f.Name, f.Content)
		}
	}

	t := &Tables{
		registry:    registry,
		cropIndex:   make(map[string]int),
		bands:       sortedBands,
		agronomy:    copyAgronomy(agro),
		fertilizers: append([]models.FertilizerSource(nil), fertilizers...),
	}
	for i, c := range crops {
		c.Aliases = append([]string(nil), c.Aliases...)
		t.crops = append(t.crops, c)
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			key := NormalizeName(name)
			if prev, dup := t.cropIndex[key]; dup && prev != i {
				return nil, fmt.Errorf("crop name %q used by %q and %q", name, crops[prev].Name, c.Name)
			}
			t.cropIndex[key] = i
		}
	}
	return t, nil
}

// NormalizeName folds case and strips accents so "Café", "cafe" and " CAFÉ "
// find the same crop.
func NormalizeName(s string) string {
	tr := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(tr, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Crop looks a profile up by name or alias.
func (t *Tables) Crop(name string) (models.CropProfile, bool) {
	i, ok := t.cropIndex[NormalizeName(name)]
	if !ok {
		return models.CropProfile{}, false
	}
	c := t.crops[i]
	c.Aliases = append([]string(nil), c.Aliases...)
	return c, true
}

// CropNames returns every name a crop may be stored under: the profile name
// and its aliases when name resolves, otherwise just name.
func (t *Tables) CropNames(name string) []string {
	c, ok := t.Crop(name)
	if !ok {
		return []string{name}
	}
	return append([]string{c.Name}, c.Aliases...)
}

func (t *Tables) Crops() []models.CropProfile {
	out := make([]models.CropProfile, len(t.crops))
	for i, c := range t.crops {
		c.Aliases = append([]string(nil), c.Aliases...)
		out[i] = c
	}
	return out
}

// ClayBands returns the bands sorted by clay content.
func (t *Tables) ClayBands() []models.ClayBand {
	return append([]models.ClayBand(nil), t.bands...)
}

func (t *Tables) Agronomy() models.Agronomy {
	return copyAgronomy(t.agronomy)
}

func (t *Tables) Fertilizers() []models.FertilizerSource {
	return append([]models.FertilizerSource(nil), t.fertilizers...)
}

// FertilizersFor returns the sources that supply form, in table order.
func (t *Tables) FertilizersFor(form string) []models.FertilizerSource {
	var out []models.FertilizerSource
	for _, f := range t.fertilizers {
		if strings.EqualFold(f.Supplies, form) {
			out = append(out, f)
		}
	}
	return out
}

func (t *Tables) Units() *units.Registry {
	return t.registry
}

func copyAgronomy(a models.Agronomy) models.Agronomy {
	micro := make(map[models.Nutrient]float64, len(a.MicronutrientMinimum))
	for k, v := range a.MicronutrientMinimum {
		micro[k] = v
	}
	a.MicronutrientMinimum = micro
	return a
}

func validateCrops(crops []models.CropProfile) error {
	if len(crops) == 0 {
		return fmt.Errorf("no crop profiles")
	}
	for _, c := range crops {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("crop profile with empty name")
		}
		for name, b := range map[string]models.Band{"Ca": c.Ca, "Mg": c.Mg, "K": c.K} {
			if b.Min < 0 || b.Ideal < b.Min {
				return fmt.Errorf("crop %q: %s band min %v ideal %v", c.Name, name, b.Min, b.Ideal)
			}
			if b.Max.Valid && b.Max.Float64 < b.Ideal {
				return fmt.Errorf("crop %q: %s band max %v below ideal %v", c.Name, name, b.Max.Float64, b.Ideal)
			}
		}
		if c.CaMgRatio.Min < 0 || c.CaMgRatio.Max < c.CaMgRatio.Min {
			return fmt.Errorf("crop %q: Ca:Mg ratio range [%v, %v]", c.Name, c.CaMgRatio.Min, c.CaMgRatio.Max)
		}
	}
	return nil
}

// validateBands expects bands sorted by MinClay and checks they tile [0,100].
func validateBands(bands []models.ClayBand) error {
	if len(bands) == 0 {
		return fmt.Errorf("no clay bands")
	}
	if bands[0].MinClay != 0 {
		return fmt.Errorf("clay bands start at %v, want 0", bands[0].MinClay)
	}
	for i, b := range bands {
		if b.MaxClay <= b.MinClay {
			return fmt.Errorf("clay band %q: empty range [%v, %v)", b.Name, b.MinClay, b.MaxClay)
		}
		if i > 0 && b.MinClay != bands[i-1].MaxClay {
			return fmt.Errorf("clay band %q starts at %v, previous ends at %v", b.Name, b.MinClay, bands[i-1].MaxClay)
		}
		if b.PThreshold < 0 || b.KThreshold < 0 || b.PFactor <= 0 {
			return fmt.Errorf("clay band %q: invalid thresholds", b.Name)
		}
	}
	if last := bands[len(bands)-1]; last.MaxClay != 100 {
		return fmt.Errorf("clay bands end at %v, want 100", last.MaxClay)
	}
	return nil
}

func validateAgronomy(a models.Agronomy) error {
	switch {
	case a.LayerFactor <= 0:
		return fmt.Errorf("agronomy: layer factor must be > 0")
	case a.LimestonePRNT <= 0 || a.LimestonePRNT > 100:
		return fmt.Errorf("agronomy: limestone PRNT %v out of range", a.LimestonePRNT)
	case a.GypsumSulfurContent <= 0 || a.GypsumSulfurContent > 1:
		return fmt.Errorf("agronomy: gypsum sulfur content %v out of range", a.GypsumSulfurContent)
	case a.KToK2O <= 0:
		return fmt.Errorf("agronomy: K to K2O factor must be > 0")
	case a.SulfurThreshold < 0 || a.GypsumPerClay < 0:
		return fmt.Errorf("agronomy: negative threshold")
	}
	return nil
}
