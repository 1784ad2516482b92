package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lox/soilcalc/internal/models"
)

var (
	CalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilcalc_calculations_total",
			Help: "Total soil calculations by crop and resulting status",
		},
		[]string{"crop", "status"},
	)

	UnitFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilcalc_unit_fallbacks_total",
			Help: "Conversions that fell back to identity because the nutrient or unit was unknown",
		},
		[]string{"nutrient"},
	)

	SamplesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilcalc_samples_stored_total",
			Help: "Total samples written to history",
		},
		[]string{"source"},
	)

	LabImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilcalc_lab_imports_total",
			Help: "Lab drop files processed by outcome",
		},
		[]string{"status"},
	)

	LabRowsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilcalc_lab_rows_rejected_total",
			Help: "Lab file rows rejected, by first reason",
		},
		[]string{"reason"},
	)

	LabImportLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soilcalc_lab_import_latency_seconds",
			Help:    "Duration of one lab drop import pass",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// unknownNutrient labels fallbacks for codes outside the sample model.
const unknownNutrient = "unknown"

// UnitFallbackObserver counts silent unit fallbacks by nutrient. Unit ids
// are never label values and unknown nutrient codes share one label.
type UnitFallbackObserver struct{}

func (UnitFallbackObserver) UnknownUnit(n models.Nutrient, unit string) {
	UnitFallbacksTotal.WithLabelValues(nutrientLabel(n)).Inc()
}

func nutrientLabel(n models.Nutrient) string {
	var s models.SoilSample
	if s.Field(n) == nil {
		return unknownNutrient
	}
	return string(n)
}
