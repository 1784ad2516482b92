package ingest

import (
	"bufio"
	"bytes"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lox/soilcalc/internal/models"
)

const dateLayout = "2006-01-02"

// Row is one parsed CSV record. Err is set when the record could not be
// turned into a sample; Line is 1-based and counts the header.
type Row struct {
	Line   int
	Sample models.SoilSample
	Err    error
}

type column struct {
	meta     string // id, location, crop, date, clay
	nutrient models.Nutrient
	unit     string
}

var metaColumns = map[string]bool{
	"id":       true,
	"location": true,
	"crop":     true,
	"date":     true,
	"clay":     true,
}

// ParseCSV reads a lab export. The header names the columns id, location,
// crop, date and clay, plus one column per nutrient code, optionally with
// its unit as "code:unit" (K:mmolc_dm3). Nutrient codes are case sensitive
// since Mo and MO differ. Unrecognised columns are skipped. Files using ';'
// as the separator may write decimals with a comma.
func ParseCSV(r io.Reader, loc *time.Location) ([]Row, error) {
	if loc == nil {
		loc = time.UTC
	}

	br := bufio.NewReader(r)
	sep, err := sniffSeparator(br)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(br)
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rows = append(rows, Row{Line: perr.Line, Err: err})
				continue
			}
			return rows, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}

		sample, err := parseRecord(record, cols, sep, loc)
		rows = append(rows, Row{Line: line, Sample: sample, Err: err})
	}
	return rows, nil
}

func sniffSeparator(br *bufio.Reader) (rune, error) {
	first, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("read csv: %w", err)
	}
	if i := bytes.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	if bytes.Count(first, []byte{';'}) > bytes.Count(first, []byte{','}) {
		return ';', nil
	}
	return ',', nil
}

func parseHeader(header []string) ([]column, error) {
	cols := make([]column, len(header))
	seen := make(map[string]bool)
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		code, unit, _ := strings.Cut(h, ":")
		code = strings.TrimSpace(code)
		unit = strings.TrimSpace(unit)

		key := code
		if meta := strings.ToLower(code); metaColumns[meta] {
			cols[i] = column{meta: meta}
			key = meta
		} else if isNutrient(models.Nutrient(code)) {
			cols[i] = column{nutrient: models.Nutrient(code), unit: unit}
		} else {
			continue
		}

		if seen[key] {
			return nil, fmt.Errorf("duplicate csv column %q", key)
		}
		seen[key] = true
	}

	for _, req := range []string{"location", "crop"} {
		if !seen[req] {
			return nil, fmt.Errorf("missing required csv header: %s", req)
		}
	}
	return cols, nil
}

func isNutrient(n models.Nutrient) bool {
	var probe models.SoilSample
	return probe.Field(n) != nil
}

func parseRecord(record []string, cols []column, sep rune, loc *time.Location) (models.SoilSample, error) {
	var s models.SoilSample
	for i, raw := range record {
		if i >= len(cols) {
			break
		}
		c := cols[i]
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}

		switch c.meta {
		case "id":
			s.ID = v
		case "location":
			s.Location = v
		case "crop":
			s.Crop = v
		case "date":
			t, err := time.ParseInLocation(dateLayout, v, loc)
			if err != nil {
				return s, fmt.Errorf("invalid date %q", v)
			}
			s.SampledAt = t
		case "clay":
			f, err := parseNumber(v, sep)
			if err != nil {
				return s, fmt.Errorf("clay: %w", err)
			}
			s.Clay = f
		case "":
			if c.nutrient == "" {
				continue
			}
			f, err := parseNumber(v, sep)
			if err != nil {
				return s, fmt.Errorf("%s: %w", c.nutrient, err)
			}
			*s.Field(c.nutrient) = f
			if c.unit != "" {
				if s.Units == nil {
					s.Units = make(map[models.Nutrient]string)
				}
				s.Units[c.nutrient] = c.unit
			}
		}
	}
	return s, nil
}

func parseNumber(v string, sep rune) (f sql.NullFloat64, err error) {
	if sep == ';' {
		v = strings.ReplaceAll(v, ",", ".")
	}
	x, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return f, fmt.Errorf("invalid number %q", v)
	}
	f.Float64, f.Valid = x, true
	return f, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
