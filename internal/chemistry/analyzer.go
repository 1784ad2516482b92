package chemistry

import (
	"errors"
	"fmt"

	"github.com/lox/soilcalc/internal/models"
	"github.com/lox/soilcalc/internal/refdata"
	"github.com/lox/soilcalc/internal/units"
)

// ErrUnknownCrop is returned when a sample names a crop that has no profile.
var ErrUnknownCrop = errors.New("unknown crop")

// Analysis pairs a sample with its canonical form and computed result.
type Analysis struct {
	Sample    models.SoilSample // as entered
	Canonical models.SoilSample
	Crop      models.CropProfile
	Result    models.CalculationResult
}

// Analyzer resolves units and crop profiles before running the Calculator.
type Analyzer struct {
	tables   *refdata.Tables
	registry *units.Registry
	calc     *Calculator
}

type AnalyzerOption func(*Analyzer)

// WithUnitObserver reports unit fallbacks during sample conversion.
func WithUnitObserver(o units.Observer) AnalyzerOption {
	return func(a *Analyzer) {
		a.registry = a.registry.WithObserver(o)
	}
}

func NewAnalyzer(tables *refdata.Tables, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		tables:   tables,
		registry: tables.Units(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.calc = NewCalculator(tables.Units(), tables.ClayBands(), tables.Agronomy())
	return a
}

func (a *Analyzer) Tables() *refdata.Tables {
	return a.tables
}

// Analyze converts sample to canonical units and calculates it against its
// crop profile. sel overrides the sample's own units; when both are empty
// the canonical units are assumed.
func (a *Analyzer) Analyze(sample models.SoilSample, sel units.Selection) (Analysis, error) {
	crop, ok := a.tables.Crop(sample.Crop)
	if !ok {
		return Analysis{}, fmt.Errorf("%w: %q", ErrUnknownCrop, sample.Crop)
	}

	if len(sel) == 0 {
		sel = units.Selection(sample.Units)
	}
	if len(sel) == 0 {
		sel = a.registry.DefaultUnits()
	}

	canonical := a.registry.SampleToCanonical(sample, sel)
	result := a.calc.Calculate(Input{
		Sample: canonical,
		Crop:   crop,
		Clay:   sample.Clay,
	})

	return Analysis{
		Sample:    sample.Clone(),
		Canonical: canonical,
		Crop:      crop,
		Result:    result,
	}, nil
}
