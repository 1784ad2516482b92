package ingest

import (
	"math"
	"sort"

	"github.com/lox/soilcalc/internal/models"
	"github.com/lox/soilcalc/internal/units"
)

const (
	FlagCECMissing      = "cec_missing"
	FlagLocationMissing = "location_missing"
	FlagCropMissing     = "crop_missing"
	FlagNegativeValue   = "negative_value"
	FlagNotANumber      = "not_a_number"
	FlagClayOutOfRange  = "clay_out_of_range"
	FlagUnknownUnit     = "unknown_unit"
)

// ValidateSample returns the quality flags for s. A sample with any flag is
// not stored. Unit ids are checked against reg without notifying its
// observer.
func ValidateSample(s *models.SoilSample, reg *units.Registry) []string {
	var flags []string

	if !s.T.Valid {
		flags = append(flags, FlagCECMissing)
	}
	if s.Location == "" {
		flags = append(flags, FlagLocationMissing)
	}
	if s.Crop == "" {
		flags = append(flags, FlagCropMissing)
	}

	negative, nan := false, false
	for _, n := range reg.Nutrients() {
		f := s.Field(n)
		if f == nil || !f.Valid {
			continue
		}
		if math.IsNaN(f.Float64) || math.IsInf(f.Float64, 0) {
			nan = true
		} else if f.Float64 < 0 {
			negative = true
		}
	}
	if negative {
		flags = append(flags, FlagNegativeValue)
	}
	if nan {
		flags = append(flags, FlagNotANumber)
	}

	if s.Clay.Valid {
		if s.Clay.Float64 < 0 || s.Clay.Float64 > 100 || math.IsNaN(s.Clay.Float64) {
			flags = append(flags, FlagClayOutOfRange)
		}
	}

	if len(UnknownUnits(s.Units, reg)) > 0 {
		flags = append(flags, FlagUnknownUnit)
	}

	return flags
}

// UnknownUnits lists the nutrients in sel whose unit is not registered,
// sorted by code.
func UnknownUnits(sel map[models.Nutrient]string, reg *units.Registry) []models.Nutrient {
	var unknown []models.Nutrient
	for n, u := range sel {
		if !reg.Has(n, u) {
			unknown = append(unknown, n)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return unknown
}
