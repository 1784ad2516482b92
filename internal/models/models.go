package models

import (
	"database/sql"
	"time"
)

// Nutrient is the code used for a measured soil attribute.
type Nutrient string

const (
	T  Nutrient = "T" // cation exchange capacity
	Ca Nutrient = "Ca"
	Mg Nutrient = "Mg"
	K  Nutrient = "K"
	P  Nutrient = "P"
	S  Nutrient = "S"
	B  Nutrient = "B"
	Cu Nutrient = "Cu"
	Fe Nutrient = "Fe"
	Mn Nutrient = "Mn"
	Zn Nutrient = "Zn"
	Mo Nutrient = "Mo"
	OM Nutrient = "OM" // organic matter
)

// Micronutrients in report order.
var Micronutrients = []Nutrient{B, Cu, Fe, Mn, Zn, Mo}

// SoilSample is a lab analysis as entered. Unset fields have Valid=false and
// are kept apart from measured zeros.
type SoilSample struct {
	ID        string
	Location  string
	Crop      string
	SampledAt time.Time
	T         sql.NullFloat64
	Ca        sql.NullFloat64
	Mg        sql.NullFloat64
	K         sql.NullFloat64
	P         sql.NullFloat64
	S         sql.NullFloat64
	OM        sql.NullFloat64
	B         sql.NullFloat64
	Cu        sql.NullFloat64
	Fe        sql.NullFloat64
	Mn        sql.NullFloat64
	Zn        sql.NullFloat64
	Mo        sql.NullFloat64
	Clay      sql.NullFloat64    // percent
	Units     map[Nutrient]string // unit each field was entered in
	Source    string             // "form" or "lab:<file>"
	CreatedAt time.Time
}

// Field returns a pointer to the measurement for n, or nil if the sample has
// no such field.
func (s *SoilSample) Field(n Nutrient) *sql.NullFloat64 {
	switch n {
	case T:
		return &s.T
	case Ca:
		return &s.Ca
	case Mg:
		return &s.Mg
	case K:
		return &s.K
	case P:
		return &s.P
	case S:
		return &s.S
	case OM:
		return &s.OM
	case B:
		return &s.B
	case Cu:
		return &s.Cu
	case Fe:
		return &s.Fe
	case Mn:
		return &s.Mn
	case Zn:
		return &s.Zn
	case Mo:
		return &s.Mo
	}
	return nil
}

// Value returns the measurement for n with unset treated as zero.
func (s SoilSample) Value(n Nutrient) float64 {
	f := s.Field(n)
	if f == nil || !f.Valid {
		return 0
	}
	return f.Float64
}

// Clone returns a deep copy, including the units map.
func (s SoilSample) Clone() SoilSample {
	if s.Units != nil {
		units := make(map[Nutrient]string, len(s.Units))
		for k, v := range s.Units {
			units[k] = v
		}
		s.Units = units
	}
	return s
}

// Band is a target range for a base saturation, in percent of T.
type Band struct {
	Min   float64
	Ideal float64
	Max   sql.NullFloat64 // no upper bound when invalid
}

// Contains reports whether v lies inside the band.
func (b Band) Contains(v float64) bool {
	if v < b.Min {
		return false
	}
	return !b.Max.Valid || v <= b.Max.Float64
}

type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// CropProfile holds the target saturations for a crop.
type CropProfile struct {
	Name      string
	Aliases   []string
	Ca        Band
	Mg        Band
	K         Band
	CaMgRatio Range
}

// ClayBand maps a clay content range to P and K sufficiency thresholds.
// MinClay is inclusive, MaxClay exclusive unless it is 100.
type ClayBand struct {
	Name       string
	MinClay    float64
	MaxClay    float64
	PThreshold float64 // mg/dm³ (Mehlich-1)
	PFactor    float64 // kg/ha P2O5 per mg/dm³ of deficit
	KThreshold float64 // mg/dm³
}

// Agronomy holds the constants behind dosage formulas.
type Agronomy struct {
	LayerFactor          float64 // kg/ha per mg/dm³ for the sampled layer
	LimestonePRNT        float64 // percent
	SulfurThreshold      float64 // mg/dm³
	GypsumPerClay        float64 // kg/ha gypsum per clay percent
	GypsumSulfurContent  float64 // fraction of S in gypsum
	KToK2O               float64
	MicronutrientMinimum map[Nutrient]float64 // mg/dm³
}

// FertilizerSource is a commercial product that supplies a nutrient form.
type FertilizerSource struct {
	Name     string
	Supplies string  // nutrient or form, e.g. "P2O5", "K2O", "S"
	Content  float64 // percent of the supplied form
}

type Saturations struct {
	Ca   float64 `json:"ca"`
	Mg   float64 `json:"mg"`
	K    float64 `json:"k"`
	HAl  float64 `json:"h_al"`
	Base float64 `json:"base"` // V%, sum of Ca, Mg and K
}

// Check is one adequacy test that feeds status classification.
type Check struct {
	Name     string `json:"name"`
	Adequate bool   `json:"adequate"`
}

type Adequacy struct {
	Ca             bool              `json:"ca"`
	Mg             bool              `json:"mg"`
	K              bool              `json:"k"`
	CaMgRatio      bool              `json:"ca_mg_ratio"`
	P              bool              `json:"p"`
	S              bool              `json:"s"`
	Micronutrients map[Nutrient]bool `json:"micronutrients,omitempty"` // measured only
}

// Checks returns the adequacy tests in a stable order.
func (a Adequacy) Checks() []Check {
	checks := []Check{
		{Name: string(Ca), Adequate: a.Ca},
		{Name: string(Mg), Adequate: a.Mg},
		{Name: string(K), Adequate: a.K},
		{Name: "CaMgRatio", Adequate: a.CaMgRatio},
		{Name: string(P), Adequate: a.P},
		{Name: string(S), Adequate: a.S},
	}
	for _, n := range Micronutrients {
		if ok, measured := a.Micronutrients[n]; measured {
			checks = append(checks, Check{Name: string(n), Adequate: ok})
		}
	}
	return checks
}

type Recommendation struct {
	Nutrient string  `json:"nutrient"` // nutrient code or amendment name
	Form     string  `json:"form,omitempty"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
}

const (
	AmendmentLimestone = "limestone"
	AmendmentGypsum    = "gypsum"
)

type Status string

const (
	StatusAdequate  Status = "Adequado"
	StatusPartial   Status = "Parcial"
	StatusDeficient Status = "Deficiente"
)

// CalculationResult is derived from a sample and never stored.
type CalculationResult struct {
	Saturations     Saturations      `json:"saturations"`
	CaMgRatio       float64          `json:"ca_mg_ratio"`
	CECComputable   bool             `json:"cec_computable"`
	Texture         string           `json:"texture"`
	Adequacy        Adequacy         `json:"is_adequate"`
	Recommendations []Recommendation `json:"recommendations"`
	Status          Status           `json:"status"`
}
