package api

import (
	"log"
	"net/http"
	"time"

	"github.com/lox/soilcalc/internal/chemistry"
	"github.com/lox/soilcalc/internal/models"
)

// ReportData is everything the printable report shows.
type ReportData struct {
	Analysis        chemistry.Analysis
	Measurements    []MeasurementRow
	Saturations     []SaturationRow
	Checks          []CheckRow
	Recommendations []RecommendationRow
	GeneratedAt     time.Time
}

type MeasurementRow struct {
	Nutrient models.Nutrient
	Value    float64
	Unit     string
}

type SaturationRow struct {
	Name     string
	Value    float64
	Band     models.Band
	Adequate bool
}

// CheckRow is an adequacy check with its verdict: adequado, excesso or
// deficiente.
type CheckRow struct {
	models.Check
	Verdict string
}

const (
	verdictAdequate  = "adequado"
	verdictExcess    = "excesso"
	verdictDeficient = "deficiente"
)

type RecommendationRow struct {
	models.Recommendation
	Products []ProductRow
}

type ProductRow struct {
	Name   string
	Amount float64
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.loadSample(w, r)
	if !ok {
		return
	}
	analysis, err := s.analyze(*sample)
	if err != nil {
		writeAnalyzeError(w, err, nil)
		return
	}

	data := s.buildReport(analysis)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "report.html", data); err != nil {
		log.Printf("report: render %s: %v", sample.ID, err)
	}
}

func (s *Server) buildReport(a chemistry.Analysis) ReportData {
	tables := s.analyzer.Tables()
	reg := tables.Units()
	res := a.Result

	data := ReportData{
		Analysis: a,
		Checks:   checkRows(a),
		Saturations: []SaturationRow{
			{Name: "Ca", Value: res.Saturations.Ca, Band: a.Crop.Ca, Adequate: res.Adequacy.Ca},
			{Name: "Mg", Value: res.Saturations.Mg, Band: a.Crop.Mg, Adequate: res.Adequacy.Mg},
			{Name: "K", Value: res.Saturations.K, Band: a.Crop.K, Adequate: res.Adequacy.K},
		},
		GeneratedAt: time.Now().In(s.loc),
	}

	for _, n := range reg.Nutrients() {
		f := a.Sample.Field(n)
		if f == nil || !f.Valid {
			continue
		}
		unit := a.Sample.Units[n]
		if unit == "" {
			unit, _ = reg.Canonical(n)
		}
		label := reg.Label(n, unit)
		if label == "" {
			label = unit
		}
		data.Measurements = append(data.Measurements, MeasurementRow{Nutrient: n, Value: f.Float64, Unit: label})
	}

	for _, rec := range res.Recommendations {
		row := RecommendationRow{Recommendation: rec}
		form := rec.Form
		if form == "" {
			form = rec.Nutrient
		}
		for _, src := range tables.FertilizersFor(form) {
			if amount, ok := chemistry.ProductDose(rec, src); ok {
				row.Products = append(row.Products, ProductRow{Name: src.Name, Amount: amount})
			}
		}
		data.Recommendations = append(data.Recommendations, row)
	}
	return data
}

// checkRows tells an excess apart from a deficiency for the checks that have
// an upper bound.
func checkRows(a chemistry.Analysis) []CheckRow {
	res := a.Result
	above := map[string]bool{
		string(models.Ca): a.Crop.Ca.Max.Valid && res.Saturations.Ca > a.Crop.Ca.Max.Float64,
		string(models.Mg): a.Crop.Mg.Max.Valid && res.Saturations.Mg > a.Crop.Mg.Max.Float64,
		string(models.K):  a.Crop.K.Max.Valid && res.Saturations.K > a.Crop.K.Max.Float64,
		"CaMgRatio":       res.CaMgRatio > a.Crop.CaMgRatio.Max,
	}

	checks := res.Adequacy.Checks()
	rows := make([]CheckRow, 0, len(checks))
	for _, c := range checks {
		row := CheckRow{Check: c, Verdict: verdictDeficient}
		switch {
		case c.Adequate:
			row.Verdict = verdictAdequate
		case above[c.Name]:
			row.Verdict = verdictExcess
		}
		rows = append(rows, row)
	}
	return rows
}
