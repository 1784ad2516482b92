package chemistry

import (
	"math"
	"strings"

	"github.com/lox/soilcalc/internal/models"
)

const (
	unitKgHa = "kg/ha"
	unitTHa  = "t/ha"
)

func (c *Calculator) recommend(in Input, l Levels, r models.CalculationResult, band models.ClayBand, classified bool) []models.Recommendation {
	recs := []models.Recommendation{}
	add := func(nutrient, form string, amount float64, unit string) {
		if amount > 0 && !math.IsInf(amount, 0) {
			recs = append(recs, models.Recommendation{Nutrient: nutrient, Form: form, Amount: amount, Unit: unit})
		}
	}

	a := r.Adequacy
	sat := r.Saturations
	layer := c.agro.LayerFactor
	s := in.Sample

	caDeficit := deficit(in.Crop.Ca.Ideal, sat.Ca)
	mgDeficit := deficit(in.Crop.Mg.Ideal, sat.Mg)

	if !a.Ca {
		add(string(models.Ca), "", c.cationDose(caDeficit, l.T, models.Ca), unitKgHa)
	}
	if !a.Mg {
		add(string(models.Mg), "", c.cationDose(mgDeficit, l.T, models.Mg), unitKgHa)
	}

	if !a.K {
		kWeight := c.registry.MilligramsPerCmolc(models.K)
		need := deficit(in.Crop.K.Ideal, sat.K) / 100 * l.T
		if kWeight > 0 {
			need = math.Max(need, deficit(band.KThreshold, s.Value(models.K))/kWeight)
		}
		add(string(models.K), "K2O", need*kWeight*layer*c.agro.KToK2O, unitKgHa)
	}

	if !a.P {
		add(string(models.P), "P2O5", deficit(band.PThreshold, s.Value(models.P))*band.PFactor, unitKgHa)
	}

	sulfur := deficit(c.agro.SulfurThreshold, s.Value(models.S)) * layer
	if !a.S {
		add(string(models.S), "", sulfur, unitKgHa)
	}

	for _, n := range models.Micronutrients {
		ok, measured := a.Micronutrients[n]
		if !measured || ok {
			continue
		}
		add(string(n), "", deficit(c.agro.MicronutrientMinimum[n], s.Value(n))*layer, unitKgHa)
	}

	// dolomitic limestone corrects Ca and Mg together
	if !a.Ca && !a.Mg {
		add(models.AmendmentLimestone, "", l.T*(caDeficit+mgDeficit)/c.agro.LimestonePRNT, unitTHa)
	}

	if !a.S && sulfur > 0 {
		if classified {
			add(models.AmendmentGypsum, "", in.Clay.Float64*c.agro.GypsumPerClay, unitKgHa)
		} else {
			add(models.AmendmentGypsum, "", sulfur/c.agro.GypsumSulfurContent, unitKgHa)
		}
	}

	return recs
}

// cationDose converts a saturation deficit in percentage points into kg/ha
// of the element.
func (c *Calculator) cationDose(deficitPct, t float64, n models.Nutrient) float64 {
	cmolc := deficitPct / 100 * t
	return cmolc * c.registry.MilligramsPerCmolc(n) * c.agro.LayerFactor
}

func deficit(target, current float64) float64 {
	if d := target - current; d > 0 {
		return d
	}
	return 0
}

// ProductDose returns how much of source delivers rec, in rec's unit. ok is
// false when the source does not supply what rec asks for.
func ProductDose(rec models.Recommendation, source models.FertilizerSource) (amount float64, ok bool) {
	want := rec.Form
	if want == "" {
		want = rec.Nutrient
	}
	if !strings.EqualFold(source.Supplies, want) || source.Content <= 0 {
		return 0, false
	}
	return rec.Amount * 100 / source.Content, true
}
