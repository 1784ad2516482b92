package chemistry

import (
	"database/sql"
	"math"

	"github.com/lox/soilcalc/internal/models"
)

// UnclassifiedTexture names the fallback band.
const UnclassifiedTexture = "unclassified"

// SelectBand picks the band whose clay range holds clay. Lower bounds are
// inclusive, upper bounds exclusive, except a band ending at 100. A missing
// or out of range clay value gives Unclassified(bands) and classified=false.
func SelectBand(bands []models.ClayBand, clay sql.NullFloat64) (band models.ClayBand, classified bool) {
	if !clay.Valid || math.IsNaN(clay.Float64) || clay.Float64 < 0 || clay.Float64 > 100 {
		return Unclassified(bands), false
	}
	v := clay.Float64
	for _, b := range bands {
		if v >= b.MinClay && (v < b.MaxClay || (b.MaxClay == 100 && v == 100)) {
			return b, true
		}
	}
	return Unclassified(bands), false
}

// Unclassified is the least restrictive interpretation across bands: the
// lowest P and K thresholds and the lowest P factor.
func Unclassified(bands []models.ClayBand) models.ClayBand {
	u := models.ClayBand{Name: UnclassifiedTexture, MinClay: 0, MaxClay: 100}
	for i, b := range bands {
		if i == 0 || b.PThreshold < u.PThreshold {
			u.PThreshold = b.PThreshold
		}
		if i == 0 || b.KThreshold < u.KThreshold {
			u.KThreshold = b.KThreshold
		}
		if i == 0 || b.PFactor < u.PFactor {
			u.PFactor = b.PFactor
		}
	}
	return u
}
