package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lox/soilcalc/internal/chemistry"
	"github.com/lox/soilcalc/internal/ingest"
	"github.com/lox/soilcalc/internal/metrics"
	"github.com/lox/soilcalc/internal/models"
	"github.com/lox/soilcalc/internal/store"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 100
	maxListLimit     = 1000
)

func (s *Server) handleAPIUnits(w http.ResponseWriter, r *http.Request) {
	reg := s.analyzer.Tables().Units()
	out := make([]NutrientUnitsJSON, 0, len(reg.Nutrients()))
	for _, n := range reg.Nutrients() {
		canonical, _ := reg.Canonical(n)
		out = append(out, NutrientUnitsJSON{Nutrient: n, Canonical: canonical, Units: reg.Units(n)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPICrops(w http.ResponseWriter, r *http.Request) {
	crops := s.analyzer.Tables().Crops()
	out := make([]CropJSON, 0, len(crops))
	for _, c := range crops {
		out = append(out, toCropJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAPICalculate always answers with a result for a known crop. Quality
// flags are reported alongside it rather than rejecting the request.
func (s *Server) handleAPIFertilizers(w http.ResponseWriter, r *http.Request) {
	sources := s.analyzer.Tables().Fertilizers()
	out := make([]FertilizerJSON, 0, len(sources))
	for _, f := range sources {
		out = append(out, FertilizerJSON{Name: f.Name, Supplies: f.Supplies, Content: f.Content})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPILocations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.store.Locations()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if locations == nil {
		locations = []string{}
	}
	writeJSON(w, http.StatusOK, locations)
}

func (s *Server) handleAPIImports(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	files, err := s.store.ListImportedFiles(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]ImportedFileJSON, 0, len(files))
	for _, f := range files {
		out = append(out, ImportedFileJSON{
			Name:       f.Name,
			ImportedAt: f.ImportedAt,
			Samples:    f.SampleCount,
			Rejected:   f.RejectedCount,
			Hash:       f.PayloadHash,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAPIImportPayload returns an imported lab file exactly as received.
func (s *Server) handleAPIImportPayload(w http.ResponseWriter, r *http.Request) {
	payload, err := s.store.GetImportedPayload(r.PathValue("name"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "import not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Write(payload)
}

func (s *Server) handleAPICalculate(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.decodeSample(w, r)
	if !ok {
		return
	}
	flags := ingest.ValidateSample(&sample, s.analyzer.Tables().Units())

	analysis, err := s.analyze(sample)
	if err != nil {
		writeAnalyzeError(w, err, flags)
		return
	}
	writeJSON(w, http.StatusOK, NewAnalysisJSON(analysis, s.nutrients(), flags))
}

func (s *Server) handleAPICreateSample(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.decodeSample(w, r)
	if !ok {
		return
	}
	if flags := ingest.ValidateSample(&sample, s.analyzer.Tables().Units()); len(flags) > 0 {
		writeError(w, http.StatusUnprocessableEntity, "sample failed validation", flags...)
		return
	}
	sample.Source = "form"

	analysis, err := s.analyze(sample)
	if err != nil {
		writeAnalyzeError(w, err, nil)
		return
	}

	id, err := s.store.InsertSample(sample)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.SamplesStored.WithLabelValues("form").Inc()

	stored, err := s.store.GetSample(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	analysis.Sample = *stored
	analysis.Canonical.ID = id

	w.Header().Set("Location", "/api/samples/"+id)
	writeJSON(w, http.StatusCreated, NewAnalysisJSON(analysis, s.nutrients(), nil))
}

func (s *Server) handleAPIListSamples(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := store.SampleFilter{
		Location: q.Get("location"),
		Limit:    limit,
	}
	if crop := q.Get("crop"); crop != "" {
		filter.Crops = s.analyzer.Tables().CropNames(crop)
	}

	samples, err := s.store.ListSamples(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	nutrients := s.nutrients()
	entries := make([]HistoryEntry, 0, len(samples))
	for _, sample := range samples {
		entry := HistoryEntry{Sample: NewSampleJSON(sample, nutrients)}
		if analysis, err := s.analyzer.Analyze(sample, nil); err != nil {
			entry.Error = err.Error()
		} else {
			entry.Status = analysis.Result.Status
			entry.Texture = analysis.Result.Texture
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAPIGetSample(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.loadSample(w, r)
	if !ok {
		return
	}
	analysis, err := s.analyze(*sample)
	if err != nil {
		writeAnalyzeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, NewAnalysisJSON(analysis, s.nutrients(), nil))
}

func (s *Server) handleAPIDeleteSample(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteSample(r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "sample not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(n, maxListLimit), true
}

func (s *Server) decodeSample(w http.ResponseWriter, r *http.Request) (models.SoilSample, bool) {
	sample, err := ParseCalculateRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return models.SoilSample{}, false
	}
	return sample, true
}

// ParseCalculateRequest decodes a CalculateRequest into a sample whose Units
// hold the selected units, request-level units taking precedence.
func ParseCalculateRequest(r io.Reader, loc *time.Location) (models.SoilSample, error) {
	var req CalculateRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return models.SoilSample{}, fmt.Errorf("invalid request body: %w", err)
	}

	sample, err := req.Sample.toModel(loc)
	if err != nil {
		return models.SoilSample{}, err
	}
	if len(req.Units) > 0 {
		if sample.Units == nil {
			sample.Units = make(map[models.Nutrient]string, len(req.Units))
		}
		for n, u := range req.Units {
			sample.Units[n] = u
		}
	}
	return sample, nil
}

func (s *Server) loadSample(w http.ResponseWriter, r *http.Request) (*models.SoilSample, bool) {
	sample, err := s.store.GetSample(r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "sample not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return sample, true
}

func (s *Server) analyze(sample models.SoilSample) (chemistry.Analysis, error) {
	analysis, err := s.analyzer.Analyze(sample, nil)
	if err != nil {
		return analysis, err
	}
	metrics.CalculationsTotal.WithLabelValues(analysis.Crop.Name, string(analysis.Result.Status)).Inc()
	return analysis, nil
}

func writeAnalyzeError(w http.ResponseWriter, err error, flags []string) {
	if errors.Is(err, chemistry.ErrUnknownCrop) {
		writeError(w, http.StatusBadRequest, err.Error(), flags...)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error(), flags...)
}

func (s *Server) nutrients() []models.Nutrient {
	return s.analyzer.Tables().Units().Nutrients()
}
