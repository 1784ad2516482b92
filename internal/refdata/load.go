package refdata

import (
	"database/sql"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lox/soilcalc/internal/models"
	"github.com/lox/soilcalc/internal/units"
)

// File is the YAML override format. Any section present replaces the
// built-in section as a whole; agronomy fields may be overridden one by one.
type File struct {
	Crops       []CropEntry       `yaml:"crops"`
	ClayBands   []ClayBandEntry   `yaml:"clay_bands"`
	Agronomy    *AgronomyEntry    `yaml:"agronomy"`
	Fertilizers []FertilizerEntry `yaml:"fertilizers"`
}

type BandEntry struct {
	Min   float64  `yaml:"min"`
	Ideal float64  `yaml:"ideal"`
	Max   *float64 `yaml:"max"`
}

type CropEntry struct {
	Name      string    `yaml:"name"`
	Aliases   []string  `yaml:"aliases"`
	Ca        BandEntry `yaml:"ca"`
	Mg        BandEntry `yaml:"mg"`
	K         BandEntry `yaml:"k"`
	CaMgRatio struct {
		Min float64 `yaml:"min"`
		Max float64 `yaml:"max"`
	} `yaml:"ca_mg_ratio"`
}

type ClayBandEntry struct {
	Name       string  `yaml:"name"`
	MinClay    float64 `yaml:"min_clay"`
	MaxClay    float64 `yaml:"max_clay"`
	PThreshold float64 `yaml:"p_threshold"`
	PFactor    float64 `yaml:"p_factor"`
	KThreshold float64 `yaml:"k_threshold"`
}

type AgronomyEntry struct {
	LayerFactor          *float64           `yaml:"layer_factor"`
	LimestonePRNT        *float64           `yaml:"limestone_prnt"`
	SulfurThreshold      *float64           `yaml:"sulfur_threshold"`
	GypsumPerClay        *float64           `yaml:"gypsum_per_clay"`
	GypsumSulfurContent  *float64           `yaml:"gypsum_sulfur_content"`
	KToK2O               *float64           `yaml:"k_to_k2o"`
	MicronutrientMinimum map[string]float64 `yaml:"micronutrient_minimum"`
}

type FertilizerEntry struct {
	Name     string  `yaml:"name"`
	Supplies string  `yaml:"supplies"`
	Content  float64 `yaml:"content"`
}

// Load reads an override file on top of the built-in tables. An empty path
// returns the defaults.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse applies a YAML document on top of the built-in tables.
func Parse(data []byte) (*Tables, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}

	crops := defaultCrops
	if len(f.Crops) > 0 {
		crops = make([]models.CropProfile, 0, len(f.Crops))
		for _, c := range f.Crops {
			crops = append(crops, models.CropProfile{
				Name:      c.Name,
				Aliases:   c.Aliases,
				Ca:        c.Ca.band(),
				Mg:        c.Mg.band(),
				K:         c.K.band(),
				CaMgRatio: models.Range{Min: c.CaMgRatio.Min, Max: c.CaMgRatio.Max},
			})
		}
	}

	bands := defaultClayBands
	if len(f.ClayBands) > 0 {
		bands = make([]models.ClayBand, 0, len(f.ClayBands))
		for _, b := range f.ClayBands {
			bands = append(bands, models.ClayBand(b))
		}
	}

	agro := defaultAgronomy()
	if f.Agronomy != nil {
		f.Agronomy.apply(&agro)
	}

	fertilizers := defaultFertilizers
	if len(f.Fertilizers) > 0 {
		fertilizers = make([]models.FertilizerSource, 0, len(f.Fertilizers))
		for _, fe := range f.Fertilizers {
			fertilizers = append(fertilizers, models.FertilizerSource(fe))
		}
	}

	return New(units.Default(), crops, bands, agro, fertilizers)
}

func (b BandEntry) band() models.Band {
	band := models.Band{Min: b.Min, Ideal: b.Ideal}
	if b.Max != nil {
		band.Max = sql.NullFloat64{Float64: *b.Max, Valid: true}
	}
	return band
}

func (a *AgronomyEntry) apply(agro *models.Agronomy) {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&agro.LayerFactor, a.LayerFactor)
	set(&agro.LimestonePRNT, a.LimestonePRNT)
	set(&agro.SulfurThreshold, a.SulfurThreshold)
	set(&agro.GypsumPerClay, a.GypsumPerClay)
	set(&agro.GypsumSulfurContent, a.GypsumSulfurContent)
	set(&agro.KToK2O, a.KToK2O)
	for n, v := range a.MicronutrientMinimum {
		agro.MicronutrientMinimum[models.Nutrient(n)] = v
	}
}
