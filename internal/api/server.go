package api

import (
	"context"
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/soilcalc/internal/chemistry"
	"github.com/lox/soilcalc/internal/store"
)

type Server struct {
	store    *store.Store
	analyzer *chemistry.Analyzer
	port     string
	loc      *time.Location
	tmpl     *template.Template
}

func NewServer(store *store.Store, analyzer *chemistry.Analyzer, port string, loc *time.Location) *Server {
	if loc == nil {
		loc = time.UTC
	}
	return &Server{
		store:    store,
		analyzer: analyzer,
		port:     port,
		loc:      loc,
		tmpl:     newTemplates(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/units", s.handleAPIUnits)
	mux.HandleFunc("GET /api/crops", s.handleAPICrops)
	mux.HandleFunc("GET /api/fertilizers", s.handleAPIFertilizers)
	mux.HandleFunc("GET /api/locations", s.handleAPILocations)
	mux.HandleFunc("GET /api/imports", s.handleAPIImports)
	mux.HandleFunc("GET /api/imports/{name}", s.handleAPIImportPayload)
	mux.HandleFunc("POST /api/calculate", s.handleAPICalculate)
	mux.HandleFunc("POST /api/samples", s.handleAPICreateSample)
	mux.HandleFunc("GET /api/samples", s.handleAPIListSamples)
	mux.HandleFunc("GET /api/samples/{id}", s.handleAPIGetSample)
	mux.HandleFunc("DELETE /api/samples/{id}", s.handleAPIDeleteSample)
	mux.HandleFunc("GET /report/{id}", s.handleReport)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok"}

	version, err := s.store.MigrationVersion()
	if err != nil {
		health.Errors = append(health.Errors, "schema: "+err.Error())
	}
	health.SchemaVersion = version

	n, err := s.store.CountSamples()
	if err != nil {
		health.Errors = append(health.Errors, "samples: "+err.Error())
	}
	health.Samples = n

	code := http.StatusOK
	if len(health.Errors) > 0 {
		health.Status = "error"
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, health)
}

// writeJSON marshals before writing so an encoding failure still produces a
// clean 500.
func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("api: encode response: %v", err)
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

type errorBody struct {
	Error string   `json:"error"`
	Flags []string `json:"flags,omitempty"`
}

func writeError(w http.ResponseWriter, code int, msg string, flags ...string) {
	writeJSON(w, code, errorBody{Error: msg, Flags: flags})
}
