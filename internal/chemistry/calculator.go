// Package chemistry turns a soil analysis in canonical units into base
// saturations, adequacy flags and corrective fertilizer doses.
//
// Every function here is pure. Degenerate inputs (T or Mg of zero, missing
// clay) resolve to zero values and false flags instead of errors.
package chemistry

import (
	"database/sql"

	"github.com/lox/soilcalc/internal/models"
	"github.com/lox/soilcalc/internal/units"
)

// Input is one calculation. Sample must already be in canonical units.
type Input struct {
	Sample models.SoilSample
	Crop   models.CropProfile
	Clay   sql.NullFloat64 // percent
}

// Calculator is immutable and safe for concurrent use.
type Calculator struct {
	registry *units.Registry
	bands    []models.ClayBand
	agro     models.Agronomy
}

func NewCalculator(registry *units.Registry, bands []models.ClayBand, agro models.Agronomy) *Calculator {
	micro := make(map[models.Nutrient]float64, len(agro.MicronutrientMinimum))
	for k, v := range agro.MicronutrientMinimum {
		micro[k] = v
	}
	agro.MicronutrientMinimum = micro

	return &Calculator{
		registry: registry,
		bands:    append([]models.ClayBand(nil), bands...),
		agro:     agro,
	}
}

// Calculate derives the full result for in. The same input always gives the
// same output.
func (c *Calculator) Calculate(in Input) models.CalculationResult {
	levels := c.cationLevels(in.Sample)
	band, classified := SelectBand(c.bands, in.Clay)

	result := models.CalculationResult{
		Saturations:   ComputeSaturations(levels),
		CaMgRatio:     CaMgRatio(levels),
		CECComputable: levels.T > 0,
		Texture:       band.Name,
	}
	result.Adequacy = c.evaluate(in, levels, result, band)
	result.Recommendations = c.recommend(in, levels, result, band, classified)
	result.Status = Classify(result.Adequacy.Checks())
	return result
}

// Levels are the exchangeable cations in cmolc/dm³ with unset read as zero.
type Levels struct {
	T  float64
	Ca float64
	Mg float64
	K  float64
}

func (c *Calculator) cationLevels(s models.SoilSample) Levels {
	return Levels{
		T:  s.Value(models.T),
		Ca: c.toCmolc(s.Value(models.Ca), models.Ca),
		Mg: c.toCmolc(s.Value(models.Mg), models.Mg),
		K:  c.toCmolc(s.Value(models.K), models.K),
	}
}

// toCmolc converts a canonical value to cmolc/dm³ with the registry's own
// equivalence factors.
func (c *Calculator) toCmolc(v float64, n models.Nutrient) float64 {
	return c.registry.FromCanonical(v, n, units.CmolcDm3)
}
