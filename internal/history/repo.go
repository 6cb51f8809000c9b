package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/models"
)

// Upsert inserts or replaces the row for r.File.
func (db *DB) Upsert(r Record) error {
	_, err := db.conn.Exec(`
		INSERT INTO records (file, path, result_date, right_count, wrong_count, ignores, exceptions, page_count, checksum, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file) DO UPDATE SET
			path        = excluded.path,
			result_date = excluded.result_date,
			right_count = excluded.right_count,
			wrong_count = excluded.wrong_count,
			ignores     = excluded.ignores,
			exceptions  = excluded.exceptions,
			page_count  = excluded.page_count,
			checksum    = excluded.checksum,
			indexed_at  = excluded.indexed_at
	`, r.File, DirName(r.Path), r.ResultDate(),
		r.Summary.Right, r.Summary.Wrong, r.Summary.Ignores, r.Summary.Exceptions,
		r.PageCount, r.Checksum, time.Now())
	if err != nil {
		return fmt.Errorf("history: upsert record: %w", err)
	}
	return nil
}

// Delete removes the row for file.
func (db *DB) Delete(file string) error {
	if _, err := db.conn.Exec(`DELETE FROM records WHERE file = ?`, file); err != nil {
		return fmt.Errorf("history: delete record: %w", err)
	}
	return nil
}

const recordColumns = `file, path, result_date, right_count, wrong_count, ignores, exceptions, page_count, checksum`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		r          Record
		dir, stamp string
	)
	err := s.Scan(&r.File, &dir, &stamp,
		&r.Summary.Right, &r.Summary.Wrong, &r.Summary.Ignores, &r.Summary.Exceptions,
		&r.PageCount, &r.Checksum)
	if err != nil {
		return Record{}, err
	}
	r.Path = PathOf(dir)
	r.Timestamp, _ = time.ParseInLocation(models.ResultDateFormat, stamp, time.Local)
	return r, nil
}

// List returns the records of p, newest first. limit <= 0 means all.
func (db *DB) List(p models.PagePath, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(`SELECT `+recordColumns+` FROM records WHERE path = ?
		ORDER BY result_date DESC, file DESC LIMIT ?`, DirName(p), limit)
	if err != nil {
		return nil, fmt.Errorf("history: list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns the record of p written at resultDate. An empty resultDate
// selects the newest record.
func (db *DB) Get(p models.PagePath, resultDate string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE path = ? AND result_date = ? ORDER BY file DESC LIMIT 1`
	args := []any{DirName(p), resultDate}
	if resultDate == "" {
		query = `SELECT ` + recordColumns + ` FROM records WHERE path = ? ORDER BY result_date DESC, file DESC LIMIT 1`
		args = args[:1]
	}
	r, err := scanRecord(db.conn.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history: %s at %q: %w", DirName(p), resultDate, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("history: get record: %w", err)
	}
	return &r, nil
}

// Pages lists every page with history, ordered by path.
func (db *DB) Pages() ([]PageSummary, error) {
	rows, err := db.conn.Query(`SELECT path, count(*), max(result_date) FROM records GROUP BY path ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("history: pages: %w", err)
	}
	defer rows.Close()

	var out []PageSummary
	for rows.Next() {
		var (
			ps  PageSummary
			dir string
		)
		if err := rows.Scan(&dir, &ps.Records, &ps.Latest); err != nil {
			return nil, err
		}
		ps.Path = PathOf(dir)
		out = append(out, ps)
	}
	return out, rows.Err()
}

// AllChecksums returns file -> checksum for every indexed record.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT file, checksum FROM records`)
	if err != nil {
		return nil, fmt.Errorf("history: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var f, cs string
		if err := rows.Scan(&f, &cs); err != nil {
			return nil, err
		}
		out[f] = cs
	}
	return out, rows.Err()
}
