package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lox/soilcalc/internal/models"
	"github.com/lox/soilcalc/internal/units"
)

func TestDefaultsAreValid(t *testing.T) {
	tables := Defaults()
	if len(tables.Crops()) != len(defaultCrops) {
		t.Errorf("crops = %d, want %d", len(tables.Crops()), len(defaultCrops))
	}
	bands := tables.ClayBands()
	if bands[0].MinClay != 0 || bands[len(bands)-1].MaxClay != 100 {
		t.Errorf("bands do not cover [0,100]: %+v", bands)
	}
	if tables.Units() != units.Default() {
		t.Error("expected default unit registry")
	}
}

func TestCropLookup(t *testing.T) {
	tables := Defaults()
	tests := []struct {
		query string
		want  string
		found bool
	}{
		{"Soja", "Soja", true},
		{"soja", "Soja", true},
		{"  SOYBEAN ", "Soja", true},
		{"cafe", "Café", true},
		{"CAFÉ", "Café", true},
		{"feijao", "Feijão", true},
		{"cana de acucar", "", false},
		{"Cana-de-acucar", "Cana-de-açúcar", true},
		{"arroz", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := tables.Crop(tt.query)
			if ok != tt.found {
				t.Fatalf("Crop(%q) found = %v, want %v", tt.query, ok, tt.found)
			}
			if ok && got.Name != tt.want {
				t.Errorf("Crop(%q) = %q, want %q", tt.query, got.Name, tt.want)
			}
		})
	}
}

func TestCropNames(t *testing.T) {
	tables := Defaults()

	if diff := cmp.Diff([]string{"Café", "coffee"}, tables.CropNames("cafe")); diff != "" {
		t.Errorf("CropNames(cafe) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"arroz"}, tables.CropNames("arroz")); diff != "" {
		t.Errorf("CropNames(arroz) mismatch (-want +got):\n%s", diff)
	}
}

func TestTablesReturnCopies(t *testing.T) {
	tables := Defaults()

	crops := tables.Crops()
	crops[0].Name = "changed"
	crops[0].Aliases[0] = "changed"
	if c, _ := tables.Crop("Soja"); c.Name != "Soja" || c.Aliases[0] != "soybean" {
		t.Errorf("crop table mutated: %+v", c)
	}

	agro := tables.Agronomy()
	agro.MicronutrientMinimum[models.B] = 99
	if tables.Agronomy().MicronutrientMinimum[models.B] != 0.6 {
		t.Error("agronomy table mutated")
	}

	bands := tables.ClayBands()
	bands[0].PThreshold = 99
	if tables.ClayBands()[0].PThreshold != 18 {
		t.Error("clay bands mutated")
	}
}

func TestFertilizersFor(t *testing.T) {
	tables := Defaults()
	got := tables.FertilizersFor("p2o5")
	if len(got) != 3 {
		t.Fatalf("P2O5 sources = %d, want 3", len(got))
	}
	if got[0].Name != "Superfosfato simples" {
		t.Errorf("first source = %q", got[0].Name)
	}
	if len(tables.FertilizersFor("N")) != 0 {
		t.Error("expected no N sources")
	}
}

func TestParseOverride(t *testing.T) {
	doc := `
crops:
  - name: Sorgo
    aliases: [sorghum]
    ca: {min: 40, ideal: 50, max: 60}
    mg: {min: 10, ideal: 15}
    k: {min: 3, ideal: 4, max: 6}
    ca_mg_ratio: {min: 2, max: 5}
agronomy:
  limestone_prnt: 90
  micronutrient_minimum:
    Zn: 1.6
`
	tables, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if _, ok := tables.Crop("Soja"); ok {
		t.Error("crops section should replace defaults")
	}
	sorgo, ok := tables.Crop("sorghum")
	if !ok {
		t.Fatal("Sorgo not found by alias")
	}
	if sorgo.Mg.Max.Valid {
		t.Error("Mg band without max should be unbounded")
	}
	if !sorgo.Ca.Max.Valid || sorgo.Ca.Max.Float64 != 60 {
		t.Errorf("Ca max = %+v, want 60", sorgo.Ca.Max)
	}

	agro := tables.Agronomy()
	if agro.LimestonePRNT != 90 {
		t.Errorf("PRNT = %v, want 90", agro.LimestonePRNT)
	}
	if agro.LayerFactor != 2 {
		t.Errorf("LayerFactor = %v, want default 2", agro.LayerFactor)
	}
	if agro.MicronutrientMinimum[models.Zn] != 1.6 || agro.MicronutrientMinimum[models.B] != 0.6 {
		t.Errorf("micronutrients = %v", agro.MicronutrientMinimum)
	}
	if len(tables.ClayBands()) != len(defaultClayBands) {
		t.Error("clay bands should keep defaults")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"gap between bands", `
clay_bands:
  - {name: a, min_clay: 0, max_clay: 20, p_threshold: 10, p_factor: 5, k_threshold: 40}
  - {name: b, min_clay: 30, max_clay: 100, p_threshold: 5, p_factor: 10, k_threshold: 80}
`},
		{"bands not reaching 100", `
clay_bands:
  - {name: a, min_clay: 0, max_clay: 50, p_threshold: 10, p_factor: 5, k_threshold: 40}
`},
		{"ideal below min", `
crops:
  - name: X
    ca: {min: 50, ideal: 40}
    mg: {min: 10, ideal: 15}
    k: {min: 3, ideal: 4}
    ca_mg_ratio: {min: 2, max: 5}
`},
		{"inverted ratio", `
crops:
  - name: X
    ca: {min: 40, ideal: 50}
    mg: {min: 10, ideal: 15}
    k: {min: 3, ideal: 4}
    ca_mg_ratio: {min: 5, max: 2}
`},
		{"zero PRNT", `
agronomy:
  limestone_prnt: 0
`},
		{"bad yaml", `crops: [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	tables, err := Load("")
	if err != nil || tables == nil {
		t.Fatalf("Load(\"\") = %v, %v", tables, err)
	}

	path := filepath.Join(t.TempDir(), "refdata.yaml")
	if err := os.WriteFile(path, []byte("agronomy:\n  sulfur_threshold: 12\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tables, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tables.Agronomy().SulfurThreshold != 12 {
		t.Errorf("SulfurThreshold = %v, want 12", tables.Agronomy().SulfurThreshold)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
