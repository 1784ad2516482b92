package units

import (
	"github.com/lox/soilcalc/internal/models"
)

// Unit ids.
const (
	CmolcDm3  = "cmolc_dm3"
	MmolcDm3  = "mmolc_dm3"
	Meq100cm3 = "meq_100cm3"
	MgDm3     = "mg_dm3"
	UgDm3     = "ug_dm3"
	GDm3      = "g_dm3"
	PPM       = "ppm"
	KgHa      = "kg_ha"
)

// Equivalence factors. These are the lab's fixed conversions and flow into
// every saturation and dosage, so they must not be rounded.
const (
	caMgToCmolc = 0.04991 // mg/dm³ Ca -> cmolc/dm³
	mgMgToCmolc = 0.0823  // mg/dm³ Mg -> cmolc/dm³, 1/12.15 on the same equivalent scale as Ca (1/20.04)
	kCmolcToMg  = 390     // cmolc/dm³ K -> mg/dm³
	kgHaToMgDm3 = 0.5     // 0-20 cm layer, 2,000,000 dm³/ha
)

var displayOrder = []models.Nutrient{
	models.T, models.Ca, models.Mg, models.K, models.P, models.S, models.OM,
	models.B, models.Cu, models.Fe, models.Mn, models.Zn, models.Mo,
}

func massUnits() []UnitConfig {
	return []UnitConfig{
		{ID: MgDm3, Label: "mg/dm³", Factor: 1},
		{ID: PPM, Label: "ppm", Factor: 1},
		{ID: KgHa, Label: "kg/ha", Factor: kgHaToMgDm3},
	}
}

// DefaultDefinitions returns the built-in unit tables.
func DefaultDefinitions() map[models.Nutrient]NutrientUnits {
	return map[models.Nutrient]NutrientUnits{
		models.T: {Canonical: CmolcDm3, Units: []UnitConfig{
			{ID: CmolcDm3, Label: "cmolc/dm³", Factor: 1},
			{ID: MmolcDm3, Label: "mmolc/dm³", Factor: 0.1},
			{ID: Meq100cm3, Label: "meq/100cm³", Factor: 1},
		}},
		models.Ca: {Canonical: CmolcDm3, Units: []UnitConfig{
			{ID: CmolcDm3, Label: "cmolc/dm³", Factor: 1},
			{ID: MmolcDm3, Label: "mmolc/dm³", Factor: 0.1},
			{ID: MgDm3, Label: "mg/dm³", Factor: caMgToCmolc},
		}},
		models.Mg: {Canonical: CmolcDm3, Units: []UnitConfig{
			{ID: CmolcDm3, Label: "cmolc/dm³", Factor: 1},
			{ID: MmolcDm3, Label: "mmolc/dm³", Factor: 0.1},
			{ID: MgDm3, Label: "mg/dm³", Factor: mgMgToCmolc},
		}},
		models.K: {Canonical: MgDm3, Units: []UnitConfig{
			{ID: MgDm3, Label: "mg/dm³", Factor: 1},
			{ID: CmolcDm3, Label: "cmolc/dm³", Factor: kCmolcToMg},
			{ID: MmolcDm3, Label: "mmolc/dm³", Factor: kCmolcToMg / 10},
		}},
		models.P:  {Canonical: MgDm3, Units: massUnits()},
		models.S:  {Canonical: MgDm3, Units: massUnits()},
		models.B:  {Canonical: MgDm3, Units: massUnits()},
		models.Cu: {Canonical: MgDm3, Units: massUnits()},
		models.Fe: {Canonical: MgDm3, Units: massUnits()},
		models.Mn: {Canonical: MgDm3, Units: massUnits()},
		models.Zn: {Canonical: MgDm3, Units: massUnits()},
		models.Mo: {Canonical: MgDm3, Units: []UnitConfig{
			{ID: MgDm3, Label: "mg/dm³", Factor: 1},
			{ID: PPM, Label: "ppm", Factor: 1},
			{ID: UgDm3, Label: "µg/dm³", Factor: 0.001},
		}},
		models.OM: {Canonical: GDm3, Units: []UnitConfig{
			{ID: GDm3, Label: "g/dm³", Factor: 1},
		}},
	}
}

var defaultRegistry = mustRegistry(DefaultDefinitions())

func mustRegistry(defs map[models.Nutrient]NutrientUnits) *Registry {
	r, err := NewRegistry(defs, displayOrder)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the process-wide built-in registry.
func Default() *Registry {
	return defaultRegistry
}
