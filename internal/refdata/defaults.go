package refdata

import (
	"database/sql"

	"github.com/lox/soilcalc/internal/models"
)

func upTo(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

var defaultCrops = []models.CropProfile{
	{
		Name:      "Soja",
		Aliases:   []string{"soybean", "soy"},
		Ca:        models.Band{Min: 40, Ideal: 50, Max: upTo(60)},
		Mg:        models.Band{Min: 10, Ideal: 15, Max: upTo(20)},
		K:         models.Band{Min: 3, Ideal: 4, Max: upTo(6)},
		CaMgRatio: models.Range{Min: 3, Max: 5},
	},
	{
		Name:      "Milho",
		Aliases:   []string{"corn", "maize"},
		Ca:        models.Band{Min: 45, Ideal: 55, Max: upTo(65)},
		Mg:        models.Band{Min: 10, Ideal: 15, Max: upTo(20)},
		K:         models.Band{Min: 3, Ideal: 4, Max: upTo(6)},
		CaMgRatio: models.Range{Min: 3, Max: 5},
	},
	{
		Name:      "Café",
		Aliases:   []string{"coffee"},
		Ca:        models.Band{Min: 50, Ideal: 60, Max: upTo(70)},
		Mg:        models.Band{Min: 15, Ideal: 18, Max: upTo(25)},
		K:         models.Band{Min: 3, Ideal: 5, Max: upTo(7)},
		CaMgRatio: models.Range{Min: 2.5, Max: 4.5},
	},
	{
		Name:      "Feijão",
		Aliases:   []string{"beans", "bean"},
		Ca:        models.Band{Min: 40, Ideal: 50, Max: upTo(60)},
		Mg:        models.Band{Min: 10, Ideal: 15, Max: upTo(20)},
		K:         models.Band{Min: 3, Ideal: 4, Max: upTo(6)},
		CaMgRatio: models.Range{Min: 2, Max: 4},
	},
	{
		Name:      "Trigo",
		Aliases:   []string{"wheat"},
		Ca:        models.Band{Min: 40, Ideal: 50, Max: upTo(60)},
		Mg:        models.Band{Min: 10, Ideal: 12, Max: upTo(20)},
		K:         models.Band{Min: 2, Ideal: 3, Max: upTo(5)},
		CaMgRatio: models.Range{Min: 3, Max: 5},
	},
	{
		Name:      "Algodão",
		Aliases:   []string{"cotton"},
		Ca:        models.Band{Min: 45, Ideal: 55, Max: upTo(65)},
		Mg:        models.Band{Min: 12, Ideal: 15, Max: upTo(20)},
		K:         models.Band{Min: 3, Ideal: 5, Max: upTo(7)},
		CaMgRatio: models.Range{Min: 3, Max: 5},
	},
	{
		Name:      "Cana-de-açúcar",
		Aliases:   []string{"sugarcane", "cana"},
		Ca:        models.Band{Min: 40, Ideal: 50, Max: upTo(65)},
		Mg:        models.Band{Min: 10, Ideal: 15, Max: upTo(20)},
		K:         models.Band{Min: 3, Ideal: 4, Max: upTo(6)},
		CaMgRatio: models.Range{Min: 2, Max: 5},
	},
	{
		// pasture tolerates high Ca/Mg saturation
		Name:      "Pastagem",
		Aliases:   []string{"pasture"},
		Ca:        models.Band{Min: 30, Ideal: 40},
		Mg:        models.Band{Min: 8, Ideal: 12},
		K:         models.Band{Min: 2, Ideal: 3, Max: upTo(6)},
		CaMgRatio: models.Range{Min: 2, Max: 6},
	},
}

// Mehlich-1 interpretation by clay content.
var defaultClayBands = []models.ClayBand{
	{Name: "arenosa", MinClay: 0, MaxClay: 15, PThreshold: 18, PFactor: 5, KThreshold: 40},
	{Name: "média", MinClay: 15, MaxClay: 35, PThreshold: 15, PFactor: 8, KThreshold: 60},
	{Name: "argilosa", MinClay: 35, MaxClay: 60, PThreshold: 8, PFactor: 12, KThreshold: 80},
	{Name: "muito argilosa", MinClay: 60, MaxClay: 100, PThreshold: 4, PFactor: 20, KThreshold: 80},
}

func defaultAgronomy() models.Agronomy {
	return models.Agronomy{
		LayerFactor:         2,
		LimestonePRNT:       80,
		SulfurThreshold:     10,
		GypsumPerClay:       50,
		GypsumSulfurContent: 0.15,
		KToK2O:              1.2046,
		MicronutrientMinimum: map[models.Nutrient]float64{
			models.B:  0.6,
			models.Cu: 0.8,
			models.Fe: 12,
			models.Mn: 5,
			models.Zn: 1.2,
			models.Mo: 0.1,
		},
	}
}

var defaultFertilizers = []models.FertilizerSource{
	{Name: "Superfosfato simples", Supplies: "P2O5", Content: 18},
	{Name: "Superfosfato triplo", Supplies: "P2O5", Content: 46},
	{Name: "MAP", Supplies: "P2O5", Content: 52},
	{Name: "Cloreto de potássio", Supplies: "K2O", Content: 60},
	{Name: "Sulfato de potássio", Supplies: "K2O", Content: 50},
	{Name: "Nitrato de cálcio", Supplies: "Ca", Content: 19},
	{Name: "Sulfato de magnésio", Supplies: "Mg", Content: 9},
	{Name: "Enxofre elementar", Supplies: "S", Content: 90},
	{Name: "Bórax", Supplies: "B", Content: 11},
	{Name: "Sulfato de cobre", Supplies: "Cu", Content: 25},
	{Name: "Sulfato ferroso", Supplies: "Fe", Content: 19},
	{Name: "Sulfato de manganês", Supplies: "Mn", Content: 26},
	{Name: "Sulfato de zinco", Supplies: "Zn", Content: 20},
	{Name: "Molibdato de sódio", Supplies: "Mo", Content: 39},
}
