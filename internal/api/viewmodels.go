package api

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/soilcalc/internal/chemistry"
	"github.com/lox/soilcalc/internal/models"
	"github.com/lox/soilcalc/internal/units"
)

const dateLayout = "2006-01-02"

// SampleJSON is the wire form of a sample. Nutrients missing from Values, or
// given as null, are unset.
type SampleJSON struct {
	ID        string                       `json:"id,omitempty"`
	Location  string                       `json:"location"`
	Crop      string                       `json:"crop"`
	SampledAt string                       `json:"sampled_at,omitempty"`
	Clay      *float64                     `json:"clay,omitempty"`
	Values    map[models.Nutrient]*float64 `json:"values"`
	Units     map[models.Nutrient]string   `json:"units,omitempty"`
	Source    string                       `json:"source,omitempty"`
	CreatedAt *time.Time                   `json:"created_at,omitempty"`
}

// CalculateRequest is the body of /api/calculate and /api/samples. Units
// overrides sample.units when both are given.
type CalculateRequest struct {
	Sample SampleJSON      `json:"sample"`
	Units  units.Selection `json:"units,omitempty"`
}

type AnalysisJSON struct {
	Sample    SampleJSON               `json:"sample"`
	Canonical SampleJSON               `json:"canonical"`
	Crop      string                   `json:"crop"`
	Result    models.CalculationResult `json:"result"`
	Flags     []string                 `json:"flags,omitempty"`
}

// HistoryEntry is a stored sample with its status recomputed from current
// reference data. Error is set when the sample can no longer be analysed.
type HistoryEntry struct {
	Sample  SampleJSON    `json:"sample"`
	Status  models.Status `json:"status,omitempty"`
	Texture string        `json:"texture,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type NutrientUnitsJSON struct {
	Nutrient  models.Nutrient    `json:"nutrient"`
	Canonical string             `json:"canonical"`
	Units     []units.UnitConfig `json:"units"`
}

type BandJSON struct {
	Min   float64  `json:"min"`
	Ideal float64  `json:"ideal"`
	Max   *float64 `json:"max,omitempty"`
}

type CropJSON struct {
	Name      string     `json:"name"`
	Aliases   []string   `json:"aliases,omitempty"`
	Ca        BandJSON   `json:"ca"`
	Mg        BandJSON   `json:"mg"`
	K         BandJSON   `json:"k"`
	CaMgRatio [2]float64 `json:"ca_mg_ratio"`
}

type FertilizerJSON struct {
	Name     string  `json:"name"`
	Supplies string  `json:"supplies"`
	Content  float64 `json:"content"`
}

// ImportedFileJSON is one entry of the lab import ledger.
type ImportedFileJSON struct {
	Name       string    `json:"name"`
	ImportedAt time.Time `json:"imported_at"`
	Samples    int       `json:"samples"`
	Rejected   int       `json:"rejected"`
	Hash       string    `json:"hash,omitempty"`
}

type HealthStatus struct {
	Status        string   `json:"status"`
	SchemaVersion int      `json:"schema_version"`
	Samples       int      `json:"samples"`
	Errors        []string `json:"errors,omitempty"`
}

func nullable(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func toNull(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

// NewSampleJSON renders s for the wire.
func NewSampleJSON(s models.SoilSample, nutrients []models.Nutrient) SampleJSON {
	out := SampleJSON{
		ID:       s.ID,
		Location: s.Location,
		Crop:     s.Crop,
		Clay:     nullable(s.Clay),
		Values:   make(map[models.Nutrient]*float64),
		Units:    s.Units,
		Source:   s.Source,
	}
	if !s.SampledAt.IsZero() {
		out.SampledAt = s.SampledAt.Format(dateLayout)
	}
	if !s.CreatedAt.IsZero() {
		t := s.CreatedAt
		out.CreatedAt = &t
	}
	for _, n := range nutrients {
		if f := s.Field(n); f != nil && f.Valid {
			out.Values[n] = nullable(*f)
		}
	}
	return out
}

func (j SampleJSON) toModel(loc *time.Location) (models.SoilSample, error) {
	s := models.SoilSample{
		ID:       j.ID,
		Location: j.Location,
		Crop:     j.Crop,
		Clay:     toNull(j.Clay),
	}
	if j.SampledAt != "" {
		t, err := time.ParseInLocation(dateLayout, j.SampledAt, loc)
		if err != nil {
			return s, fmt.Errorf("sampled_at: want YYYY-MM-DD, got %q", j.SampledAt)
		}
		s.SampledAt = t
	}
	for n, v := range j.Values {
		f := s.Field(n)
		if f == nil {
			return s, fmt.Errorf("unknown nutrient %q", n)
		}
		*f = toNull(v)
	}
	if len(j.Units) > 0 {
		s.Units = make(map[models.Nutrient]string, len(j.Units))
		for n, u := range j.Units {
			s.Units[n] = u
		}
	}
	return s, nil
}

// NewAnalysisJSON renders a for the wire. Values outside nutrients are left out.
func NewAnalysisJSON(a chemistry.Analysis, nutrients []models.Nutrient, flags []string) AnalysisJSON {
	return AnalysisJSON{
		Sample:    NewSampleJSON(a.Sample, nutrients),
		Canonical: NewSampleJSON(a.Canonical, nutrients),
		Crop:      a.Crop.Name,
		Result:    a.Result,
		Flags:     flags,
	}
}

func toBandJSON(b models.Band) BandJSON {
	return BandJSON{Min: b.Min, Ideal: b.Ideal, Max: nullable(b.Max)}
}

func toCropJSON(c models.CropProfile) CropJSON {
	return CropJSON{
		Name:      c.Name,
		Aliases:   c.Aliases,
		Ca:        toBandJSON(c.Ca),
		Mg:        toBandJSON(c.Mg),
		K:         toBandJSON(c.K),
		CaMgRatio: [2]float64{c.CaMgRatio.Min, c.CaMgRatio.Max},
	}
}
