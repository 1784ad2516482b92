package chemistry

import (
	"errors"
	"testing"

	"github.com/lox/soilcalc/internal/models"
	"github.com/lox/soilcalc/internal/refdata"
	"github.com/lox/soilcalc/internal/units"
)

type countingObserver struct {
	n int
}

func (o *countingObserver) UnknownUnit(models.Nutrient, string) { o.n++ }

func TestAnalyze_UnitConversion(t *testing.T) {
	a := NewAnalyzer(refdata.Defaults())
	sample := models.SoilSample{
		Crop: "soja",
		T:    val(120),
		Ca:   val(2000),
		Mg:   val(15),
		K:    val(3),
	}
	sel := units.Selection{
		models.T:  units.MmolcDm3,
		models.Ca: units.MgDm3,
		models.Mg: units.MmolcDm3,
		models.K:  units.MmolcDm3,
	}

	got, err := a.Analyze(sample, sel)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !approx(got.Canonical.Ca.Float64, 99.82) {
		t.Errorf("canonical Ca = %v, want 99.82", got.Canonical.Ca.Float64)
	}
	if !approx(got.Canonical.T.Float64, 12) {
		t.Errorf("canonical T = %v, want 12", got.Canonical.T.Float64)
	}
	if !approx(got.Canonical.K.Float64, 117) {
		t.Errorf("canonical K = %v, want 117", got.Canonical.K.Float64)
	}
	if got.Sample.Ca.Float64 != 2000 {
		t.Errorf("entered Ca = %v, want 2000", got.Sample.Ca.Float64)
	}
	if got.Crop.Name != "Soja" {
		t.Errorf("Crop = %q, want Soja", got.Crop.Name)
	}
	if !approx(got.Result.Saturations.Mg, 1.5/12*100) {
		t.Errorf("Mg saturation = %v", got.Result.Saturations.Mg)
	}
}

func TestAnalyze_UnitSelectionPrecedence(t *testing.T) {
	a := NewAnalyzer(refdata.Defaults())
	sample := models.SoilSample{
		Crop:  "Milho",
		T:     val(10),
		Ca:    val(50),
		Mg:    val(1.5),
		K:     val(78),
		Units: map[models.Nutrient]string{models.Ca: units.MmolcDm3},
	}

	fromSample, err := a.Analyze(sample, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(fromSample.Canonical.Ca.Float64, 5) {
		t.Errorf("sample units: Ca = %v, want 5", fromSample.Canonical.Ca.Float64)
	}

	explicit, err := a.Analyze(sample, units.Selection{models.Ca: units.CmolcDm3})
	if err != nil {
		t.Fatal(err)
	}
	if explicit.Canonical.Ca.Float64 != 50 {
		t.Errorf("explicit units: Ca = %v, want 50", explicit.Canonical.Ca.Float64)
	}

	sample.Units = nil
	defaults, err := a.Analyze(sample, nil)
	if err != nil {
		t.Fatal(err)
	}
	if defaults.Canonical.Ca.Float64 != 50 {
		t.Errorf("default units: Ca = %v, want 50", defaults.Canonical.Ca.Float64)
	}
}

func TestAnalyze_UnknownCrop(t *testing.T) {
	a := NewAnalyzer(refdata.Defaults())
	_, err := a.Analyze(models.SoilSample{Crop: "arroz", T: val(10)}, nil)
	if !errors.Is(err, ErrUnknownCrop) {
		t.Errorf("err = %v, want ErrUnknownCrop", err)
	}
}

func TestAnalyze_ReportsUnknownUnits(t *testing.T) {
	obs := &countingObserver{}
	a := NewAnalyzer(refdata.Defaults(), WithUnitObserver(obs))

	sample := models.SoilSample{Crop: "Soja", T: val(10), Ca: val(5)}
	got, err := a.Analyze(sample, units.Selection{models.Ca: "lb_acre"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Canonical.Ca.Float64 != 5 {
		t.Errorf("Ca = %v, want unchanged 5", got.Canonical.Ca.Float64)
	}
	if obs.n != 1 {
		t.Errorf("observer calls = %d, want 1", obs.n)
	}
}

func TestAnalyze_ClayFromSample(t *testing.T) {
	a := NewAnalyzer(refdata.Defaults())
	sample := models.SoilSample{Crop: "Soja", T: val(10), Ca: val(5), Mg: val(1.5), K: val(78), P: val(10), Clay: val(10)}

	got, err := a.Analyze(sample, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Result.Texture != "arenosa" {
		t.Errorf("Texture = %q, want arenosa", got.Result.Texture)
	}
	if got.Result.Adequacy.P {
		t.Error("P adequate in sandy soil at 10 mg/dm³, want false")
	}
}
