// Package catalog persists one record per cataloged media file in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when no record matches.
var ErrNotFound = errors.New("catalog: record not found")

// Record is the catalog entry of one media file. Name is unique per
// MediaTypeID.
type Record struct {
	ID            string    `json:"id" yaml:"id"`
	MediaTypeID   int       `json:"media_type_id" yaml:"media_type_id"`
	Name          string    `json:"name" yaml:"name"`
	TakenDateTime time.Time `json:"taken_date_time" yaml:"taken_date_time"`
	// TakenFileTime is TakenDateTime as yyyyMMddHH.
	TakenFileTime int64  `json:"taken_file_time" yaml:"taken_file_time"`
	CategoryTags  string `json:"category_tags" yaml:"category_tags"`
	MenuTags      string `json:"menu_tags" yaml:"menu_tags"`
	AlbumTags     string `json:"album_tags" yaml:"album_tags"`
	Title         string `json:"title" yaml:"title"`
	Description   string `json:"description" yaml:"description"`
	People        string `json:"people" yaml:"people"`
	ToBeProcessed bool   `json:"to_be_processed" yaml:"to_be_processed"`
	SearchStr     string `json:"search_str" yaml:"search_str"`
}

const schema = `
CREATE TABLE IF NOT EXISTS media_info (
	id              TEXT PRIMARY KEY,
	media_type_id   INTEGER NOT NULL,
	name            TEXT NOT NULL,
	taken_date_time TEXT NOT NULL,
	taken_file_time INTEGER NOT NULL,
	category_tags   TEXT NOT NULL DEFAULT '',
	menu_tags       TEXT NOT NULL DEFAULT '',
	album_tags      TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	people          TEXT NOT NULL DEFAULT '',
	to_be_processed INTEGER NOT NULL DEFAULT 0,
	search_str      TEXT NOT NULL DEFAULT '',
	UNIQUE (media_type_id, name)
);
CREATE INDEX IF NOT EXISTS media_info_taken ON media_info (media_type_id, taken_file_time);
`

const columns = `id, media_type_id, name, taken_date_time, taken_file_time, category_tags,
	menu_tags, album_tags, title, description, people, to_be_processed, search_str`

// Store is a SQLite backed catalog. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the catalog database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; busy_timeout covers readers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert adds rec. A missing ID is generated. When a record with the same
// media type and name exists, nothing changes and inserted is false.
func (s *Store) Insert(ctx context.Context, rec *Record) (inserted bool, err error) {
	if rec.Name == "" {
		return false, errors.New("catalog: record has no name")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO media_info (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (media_type_id, name) DO NOTHING`,
		rec.ID, rec.MediaTypeID, rec.Name, rec.TakenDateTime.UTC().Format(time.RFC3339),
		rec.TakenFileTime, rec.CategoryTags, rec.MenuTags, rec.AlbumTags, rec.Title,
		rec.Description, rec.People, rec.ToBeProcessed, rec.SearchStr,
	)
	if err != nil {
		return false, fmt.Errorf("insert %q: %w", rec.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert %q: %w", rec.Name, err)
	}
	return n == 1, nil
}

// Get returns the record with the given media type and name.
func (s *Store) Get(ctx context.Context, mediaTypeID int, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM media_info
		WHERE media_type_id = ? AND name = ?`, mediaTypeID, name)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %q: %w", name, err)
	}
	return rec, nil
}

// ListTaken returns the records whose TakenFileTime lies in [fromHour, toHour],
// ordered by capture time and name.
func (s *Store) ListTaken(ctx context.Context, mediaTypeID int, fromHour, toHour int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM media_info
		WHERE media_type_id = ? AND taken_file_time BETWEEN ? AND ?
		ORDER BY taken_file_time, taken_date_time, name`, mediaTypeID, fromHour, toHour)
	if err != nil {
		return nil, fmt.Errorf("list taken: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list taken: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec   Record
		taken string
	)
	err := sc.Scan(&rec.ID, &rec.MediaTypeID, &rec.Name, &taken, &rec.TakenFileTime,
		&rec.CategoryTags, &rec.MenuTags, &rec.AlbumTags, &rec.Title, &rec.Description,
		&rec.People, &rec.ToBeProcessed, &rec.SearchStr)
	if err != nil {
		return Record{}, err
	}
	rec.TakenDateTime, err = time.Parse(time.RFC3339, taken)
	if err != nil {
		return Record{}, fmt.Errorf("parse taken_date_time %q: %w", taken, err)
	}
	return rec, nil
}
