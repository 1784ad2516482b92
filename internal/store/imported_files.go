package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// ImportedFile records a lab drop file that has been processed.
type ImportedFile struct {
	ID            int64
	Name          string
	ImportedAt    time.Time
	SampleCount   int
	RejectedCount int
	PayloadHash   string
}

// PayloadHash returns the hex sha256 used to detect re-uploaded files.
func PayloadHash(payload []byte) string {
	hash := sha256.Sum256(payload)
	return hex.EncodeToString(hash[:])
}

// MarkFileImported records name as processed and keeps a compressed copy of
// the payload. Marking the same name twice is a no-op.
func (s *Store) MarkFileImported(name string, payload []byte, samples, rejected int) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT INTO imported_files (name, imported_at, sample_count, rejected_count, payload_compressed, payload_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, time.Now().UTC(), samples, rejected, buf.Bytes(), PayloadHash(payload))
	if err != nil {
		return fmt.Errorf("insert imported file: %w", err)
	}
	return nil
}

// IsFileImported reports whether a file with this name, or with identical
// contents under another name, was already imported. hash may be empty.
func (s *Store) IsFileImported(name, hash string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM imported_files
		WHERE name = ? OR (? != '' AND payload_hash = ?)
	`, name, hash, hash).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetImportedPayload returns the original bytes of an imported file.
func (s *Store) GetImportedPayload(name string) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM imported_files WHERE name = ?`, name).
		Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// ListImportedFiles returns the most recent imports first.
func (s *Store) ListImportedFiles(limit int) ([]ImportedFile, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, name, imported_at, sample_count, rejected_count, COALESCE(payload_hash, '')
		FROM imported_files
		ORDER BY imported_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []ImportedFile
	for rows.Next() {
		var f ImportedFile
		if err := rows.Scan(&f.ID, &f.Name, &f.ImportedAt, &f.SampleCount, &f.RejectedCount, &f.PayloadHash); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
