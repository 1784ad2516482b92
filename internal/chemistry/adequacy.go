package chemistry

import (
	"github.com/lox/soilcalc/internal/models"
)

func (c *Calculator) evaluate(in Input, l Levels, r models.CalculationResult, band models.ClayBand) models.Adequacy {
	var a models.Adequacy

	// only assayed micronutrients are judged
	for _, n := range models.Micronutrients {
		if _, ok := c.agro.MicronutrientMinimum[n]; !ok {
			continue
		}
		if f := in.Sample.Field(n); f != nil && f.Valid {
			if a.Micronutrients == nil {
				a.Micronutrients = make(map[models.Nutrient]bool)
			}
			a.Micronutrients[n] = false
		}
	}

	// without a usable T nothing can be judged
	if l.T <= 0 {
		return a
	}

	sat := r.Saturations
	a.Ca = in.Crop.Ca.Contains(sat.Ca)
	a.Mg = in.Crop.Mg.Contains(sat.Mg)
	a.K = in.Crop.K.Contains(sat.K) && in.Sample.Value(models.K) >= band.KThreshold
	a.CaMgRatio = r.CaMgRatio > 0 && in.Crop.CaMgRatio.Contains(r.CaMgRatio)
	a.P = in.Sample.Value(models.P) >= band.PThreshold
	a.S = in.Sample.Value(models.S) >= c.agro.SulfurThreshold

	for n := range a.Micronutrients {
		a.Micronutrients[n] = in.Sample.Value(n) >= c.agro.MicronutrientMinimum[n]
	}
	return a
}

// Classify summarises adequacy checks: all adequate is "Adequado", at least
// half is "Parcial", anything less is "Deficiente". An empty list counts as
// adequate.
func Classify(checks []models.Check) models.Status {
	adequate := 0
	for _, c := range checks {
		if c.Adequate {
			adequate++
		}
	}
	switch {
	case adequate == len(checks):
		return models.StatusAdequate
	case adequate*2 >= len(checks):
		return models.StatusPartial
	default:
		return models.StatusDeficient
	}
}
