package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"github.com/lox/soilcalc/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}
	store := New(db, loc)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func val(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != migrations[len(migrations)-1].Version {
		t.Errorf("version = %d, want %d", version, migrations[len(migrations)-1].Version)
	}
}

func TestInsertAndGetSample(t *testing.T) {
	store := setupTestStore(t)

	sample := models.SoilSample{
		Location:  "Talhão 3",
		Crop:      "Soja",
		SampledAt: time.Date(2026, 3, 14, 0, 0, 0, 0, store.loc),
		T:         val(120),
		Ca:        val(2000),
		Mg:        val(0),
		K:         val(3),
		Clay:      val(42),
		Units: map[models.Nutrient]string{
			models.T:  "mmolc_dm3",
			models.Ca: "mg_dm3",
		},
	}

	id, err := store.InsertSample(sample)
	if err != nil {
		t.Fatalf("InsertSample: %v", err)
	}
	if id == "" {
		t.Fatal("InsertSample returned empty id")
	}

	got, err := store.GetSample(id)
	if err != nil {
		t.Fatalf("GetSample: %v", err)
	}

	if got.Ca.Float64 != 2000 || !got.Ca.Valid {
		t.Errorf("Ca = %+v, want verbatim 2000", got.Ca)
	}
	if !got.Mg.Valid || got.Mg.Float64 != 0 {
		t.Errorf("Mg = %+v, want measured zero", got.Mg)
	}
	if got.P.Valid {
		t.Errorf("P = %+v, want unset", got.P)
	}
	if !got.SampledAt.Equal(sample.SampledAt) {
		t.Errorf("SampledAt = %v, want %v", got.SampledAt, sample.SampledAt)
	}
	if got.Source != "form" {
		t.Errorf("Source = %q, want form", got.Source)
	}
	if diff := cmp.Diff(sample.Units, got.Units); diff != "" {
		t.Errorf("Units mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertSample_KeepsGivenID(t *testing.T) {
	store := setupTestStore(t)

	id, err := store.InsertSample(models.SoilSample{ID: "lab-001", Location: "A", Crop: "Milho", T: val(8)})
	if err != nil {
		t.Fatalf("InsertSample: %v", err)
	}
	if id != "lab-001" {
		t.Errorf("id = %q, want lab-001", id)
	}

	if _, err := store.InsertSample(models.SoilSample{ID: "lab-001", Location: "A", Crop: "Milho"}); err == nil {
		t.Error("duplicate id inserted, want error")
	}
}

func TestGetSample_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetSample("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListSamples(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	inserts := []models.SoilSample{
		{ID: "a", Location: "Norte", Crop: "Soja", CreatedAt: base},
		{ID: "b", Location: "Norte", Crop: "Milho", CreatedAt: base.Add(time.Hour)},
		{ID: "c", Location: "Sul", Crop: "Soja", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "d", Location: "Sul", Crop: "Café", CreatedAt: base.Add(3 * time.Hour)},
		{ID: "e", Location: "Sul", Crop: "soybean", CreatedAt: base.Add(4 * time.Hour)},
	}
	for _, s := range inserts {
		if _, err := store.InsertSample(s); err != nil {
			t.Fatalf("InsertSample %s: %v", s.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter SampleFilter
		want   []string
	}{
		{"all newest first", SampleFilter{}, []string{"e", "d", "c", "b", "a"}},
		{"by location", SampleFilter{Location: "Norte"}, []string{"b", "a"}},
		{"by crop ignores case", SampleFilter{Crops: []string{"soja"}}, []string{"c", "a"}},
		{"by crop ignores accents", SampleFilter{Crops: []string{"CAFE"}}, []string{"d"}},
		{"by crop and alias", SampleFilter{Crops: []string{"Soja", "Soybean"}}, []string{"e", "c", "a"}},
		{"by crop with limit", SampleFilter{Crops: []string{"soja"}, Limit: 1}, []string{"c"}},
		{"by crop and location", SampleFilter{Location: "Norte", Crops: []string{"milho"}}, []string{"b"}},
		{"limit", SampleFilter{Limit: 1}, []string{"e"}},
		{"no match", SampleFilter{Location: "Leste"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples, err := store.ListSamples(tt.filter)
			if err != nil {
				t.Fatalf("ListSamples: %v", err)
			}
			var ids []string
			for _, s := range samples {
				ids = append(ids, s.ID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}

	locations, err := store.Locations()
	if err != nil {
		t.Fatalf("Locations: %v", err)
	}
	if diff := cmp.Diff([]string{"Norte", "Sul"}, locations); diff != "" {
		t.Errorf("Locations mismatch (-want +got):\n%s", diff)
	}

	n, err := store.CountSamples()
	if err != nil {
		t.Fatalf("CountSamples: %v", err)
	}
	if n != 5 {
		t.Errorf("CountSamples = %d, want 5", n)
	}
}

func TestDeleteSample(t *testing.T) {
	store := setupTestStore(t)

	id, err := store.InsertSample(models.SoilSample{Location: "A", Crop: "Café"})
	if err != nil {
		t.Fatalf("InsertSample: %v", err)
	}
	if err := store.DeleteSample(id); err != nil {
		t.Fatalf("DeleteSample: %v", err)
	}
	if _, err := store.GetSample(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSample after delete: err = %v, want ErrNotFound", err)
	}
	if err := store.DeleteSample(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteSample: err = %v, want ErrNotFound", err)
	}
}

func TestImportedFiles(t *testing.T) {
	store := setupTestStore(t)
	payload := []byte("id,location,crop,T\nx,Norte,Soja,10\n")

	imported, err := store.IsFileImported("lote1.csv", PayloadHash(payload))
	if err != nil {
		t.Fatalf("IsFileImported: %v", err)
	}
	if imported {
		t.Fatal("file reported imported before marking")
	}

	if err := store.MarkFileImported("lote1.csv", payload, 1, 0); err != nil {
		t.Fatalf("MarkFileImported: %v", err)
	}
	if err := store.MarkFileImported("lote1.csv", payload, 1, 0); err != nil {
		t.Fatalf("MarkFileImported twice: %v", err)
	}

	tests := []struct {
		name     string
		fileName string
		hash     string
		want     bool
	}{
		{"same name", "lote1.csv", "", true},
		{"renamed copy", "lote1-copy.csv", PayloadHash(payload), true},
		{"new file", "lote2.csv", PayloadHash([]byte("other")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.IsFileImported(tt.fileName, tt.hash)
			if err != nil {
				t.Fatalf("IsFileImported: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsFileImported(%q) = %v, want %v", tt.fileName, got, tt.want)
			}
		})
	}

	raw, err := store.GetImportedPayload("lote1.csv")
	if err != nil {
		t.Fatalf("GetImportedPayload: %v", err)
	}
	if string(raw) != string(payload) {
		t.Errorf("payload = %q, want %q", raw, payload)
	}

	files, err := store.ListImportedFiles(10)
	if err != nil {
		t.Fatalf("ListImportedFiles: %v", err)
	}
	if len(files) != 1 || files[0].SampleCount != 1 {
		t.Errorf("ListImportedFiles = %+v, want one file with 1 sample", files)
	}
}
