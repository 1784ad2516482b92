package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lox/soilcalc/internal/models"
	"github.com/lox/soilcalc/internal/refdata"
)

// ErrNotFound is returned when a sample id has no row.
var ErrNotFound = errors.New("not found")

const dateLayout = "2006-01-02"

type Store struct {
	db  *sql.DB
	loc *time.Location
}

// New wraps db. loc is the zone sample dates are read back in.
func New(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

// SampleFilter narrows ListSamples. Zero values match everything.
type SampleFilter struct {
	Location string
	Crops    []string // any of these names, ignoring case and accents
	Limit    int
}

const sampleColumns = `id, location, crop, sampled_at, t, ca, mg, k, p, s, om, b, cu, fe, mn, zn, mo, clay, units, source, created_at`

// InsertSample stores s verbatim, in the units it was entered in. An empty ID
// is replaced with a new UUID. The stored ID is returned.
func (s *Store) InsertSample(sample models.SoilSample) (string, error) {
	if sample.ID == "" {
		sample.ID = uuid.NewString()
	}
	if sample.Source == "" {
		sample.Source = "form"
	}
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now()
	}
	sample.CreatedAt = sample.CreatedAt.UTC()

	unitsJSON, err := json.Marshal(nonNilUnits(sample.Units))
	if err != nil {
		return "", fmt.Errorf("marshal units: %w", err)
	}

	var sampledAt sql.NullString
	if !sample.SampledAt.IsZero() {
		sampledAt = sql.NullString{String: sample.SampledAt.In(s.loc).Format(dateLayout), Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO samples (`+sampleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sample.ID, sample.Location, sample.Crop, sampledAt,
		sample.T, sample.Ca, sample.Mg, sample.K, sample.P, sample.S, sample.OM,
		sample.B, sample.Cu, sample.Fe, sample.Mn, sample.Zn, sample.Mo, sample.Clay,
		string(unitsJSON), sample.Source, sample.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert sample: %w", err)
	}
	return sample.ID, nil
}

// GetSample returns ErrNotFound if id is unknown.
func (s *Store) GetSample(id string) (*models.SoilSample, error) {
	row := s.db.QueryRow(`SELECT `+sampleColumns+` FROM samples WHERE id = ?`, id)
	sample, err := s.scanSample(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sample, nil
}

// ListSamples returns matching samples, newest first.
func (s *Store) ListSamples(f SampleFilter) ([]models.SoilSample, error) {
	var where []string
	var args []any
	if f.Location != "" {
		where = append(where, "location = ?")
		args = append(args, f.Location)
	}
	crops := make(map[string]bool, len(f.Crops))
	for _, c := range f.Crops {
		crops[refdata.NormalizeName(c)] = true
	}

	query := `SELECT ` + sampleColumns + ` FROM samples`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	// crop folding happens in Go, so the limit does too when filtering by crop
	if f.Limit > 0 && len(crops) == 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.SoilSample
	for rows.Next() {
		sample, err := s.scanSample(rows)
		if err != nil {
			return nil, err
		}
		if len(crops) > 0 && !crops[refdata.NormalizeName(sample.Crop)] {
			continue
		}
		samples = append(samples, *sample)
		if f.Limit > 0 && len(samples) == f.Limit {
			break
		}
	}
	return samples, rows.Err()
}

// DeleteSample returns ErrNotFound if nothing was deleted.
func (s *Store) DeleteSample(id string) error {
	result, err := s.db.Exec(`DELETE FROM samples WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sample: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Locations lists the distinct sample locations in alphabetical order.
func (s *Store) Locations() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT location FROM samples ORDER BY location`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// CountSamples returns the number of stored samples.
func (s *Store) CountSamples() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanSample(row scanner) (*models.SoilSample, error) {
	var (
		sample    models.SoilSample
		sampledAt sql.NullString
		unitsJSON string
	)
	err := row.Scan(&sample.ID, &sample.Location, &sample.Crop, &sampledAt,
		&sample.T, &sample.Ca, &sample.Mg, &sample.K, &sample.P, &sample.S, &sample.OM,
		&sample.B, &sample.Cu, &sample.Fe, &sample.Mn, &sample.Zn, &sample.Mo, &sample.Clay,
		&unitsJSON, &sample.Source, &sample.CreatedAt)
	if err != nil {
		return nil, err
	}

	if sampledAt.Valid && sampledAt.String != "" {
		t, err := time.ParseInLocation(dateLayout, sampledAt.String, s.loc)
		if err != nil {
			return nil, fmt.Errorf("parse sampled_at %q: %w", sampledAt.String, err)
		}
		sample.SampledAt = t
	}

	if err := json.Unmarshal([]byte(unitsJSON), &sample.Units); err != nil {
		return nil, fmt.Errorf("unmarshal units for %s: %w", sample.ID, err)
	}
	if len(sample.Units) == 0 {
		sample.Units = nil
	}
	return &sample, nil
}

func nonNilUnits(u map[models.Nutrient]string) map[models.Nutrient]string {
	if u == nil {
		return map[models.Nutrient]string{}
	}
	return u
}
