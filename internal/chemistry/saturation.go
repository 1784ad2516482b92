package chemistry

import (
	"github.com/lox/soilcalc/internal/models"
)

// Saturation returns the share of t occupied by x, in percent. It is 0 when
// t is not positive.
func Saturation(x, t float64) float64 {
	if t <= 0 {
		return 0
	}
	return x / t * 100
}

func ComputeSaturations(l Levels) models.Saturations {
	if l.T <= 0 {
		return models.Saturations{}
	}

	sat := models.Saturations{
		Ca: Saturation(l.Ca, l.T),
		Mg: Saturation(l.Mg, l.T),
		K:  Saturation(l.K, l.T),
	}
	sat.Base = sat.Ca + sat.Mg + sat.K

	// acidity is whatever part of T the bases do not fill
	if hal := l.T - (l.Ca + l.Mg + l.K); hal > 0 {
		sat.HAl = Saturation(hal, l.T)
	}
	return sat
}

// CaMgRatio is Ca/Mg in cmolc. It is 0 when Mg or T is not positive.
func CaMgRatio(l Levels) float64 {
	if l.T <= 0 || l.Mg <= 0 {
		return 0
	}
	return l.Ca / l.Mg
}
