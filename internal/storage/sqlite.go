package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shashin/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private in-memory database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		filepath TEXT NOT NULL UNIQUE,
		checksum TEXT,
		tags TEXT NOT NULL DEFAULT '[]',
		caption TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_photos_filename ON photos(filename);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_photos_checksum ON photos(checksum) WHERE checksum IS NOT NULL AND checksum != '';
	`
	_, err := db.Exec(schema)
	return err
}

const photoColumns = `id, filename, filepath, checksum, tags, caption, description, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row scanner) (*models.Photo, error) {
	var p models.Photo
	var checksum sql.NullString
	var tagsJSON string
	if err := row.Scan(&p.ID, &p.Filename, &p.Filepath, &checksum, &tagsJSON, &p.Caption, &p.Description, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Checksum = checksum.String
	p.Tags = []string{}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags of photo %d: %w", p.ID, err)
		}
	}
	return &p, nil
}

// CreatePhoto inserts a photo and returns it with its assigned ID.
func (s *SQLiteStorage) CreatePhoto(ctx context.Context, in *models.PhotoInput) (*models.Photo, error) {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	var checksum sql.NullString
	if in.Checksum != "" {
		checksum = sql.NullString{String: in.Checksum, Valid: true}
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO photos (filename, filepath, checksum, tags, caption, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.Filename, in.Filepath, checksum, string(tagsJSON), in.Caption, in.Description, now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, in.Filepath)
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Photo{
		ID:          id,
		Filename:    in.Filename,
		Filepath:    in.Filepath,
		Checksum:    in.Checksum,
		Tags:        tags,
		Caption:     in.Caption,
		Description: in.Description,
		CreatedAt:   now,
	}, nil
}

// GetPhoto returns a photo by ID.
func (s *SQLiteStorage) GetPhoto(ctx context.Context, id int64) (*models.Photo, error) {
	p, err := scanPhoto(s.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return p, err
}

// GetPhotoByPath returns the photo stored at path.
func (s *SQLiteStorage) GetPhotoByPath(ctx context.Context, path string) (*models.Photo, error) {
	p, err := scanPhoto(s.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE filepath = ?`, path))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return p, err
}

// GetPhotoByChecksum returns the photo whose content hashes to checksum.
func (s *SQLiteStorage) GetPhotoByChecksum(ctx context.Context, checksum string) (*models.Photo, error) {
	p, err := scanPhoto(s.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE checksum = ?`, checksum))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: checksum %s", ErrNotFound, checksum)
	}
	return p, err
}

// GetPhotos returns the photos with the given IDs in one query.
func (s *SQLiteStorage) GetPhotos(ctx context.Context, ids []int64) (map[int64]*models.Photo, error) {
	out := make(map[int64]*models.Photo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// ListPhotos returns photos in ID order, skipping skip rows and returning at most limit.
func (s *SQLiteStorage) ListPhotos(ctx context.Context, skip, limit int) ([]*models.Photo, error) {
	return s.queryPhotos(ctx,
		`SELECT `+photoColumns+` FROM photos ORDER BY id LIMIT ? OFFSET ?`, limit, skip)
}

// AllPhotos returns every photo in ID order.
func (s *SQLiteStorage) AllPhotos(ctx context.Context) ([]*models.Photo, error) {
	return s.queryPhotos(ctx, `SELECT `+photoColumns+` FROM photos ORDER BY id`)
}

func (s *SQLiteStorage) queryPhotos(ctx context.Context, query string, args ...any) ([]*models.Photo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []*models.Photo{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// UpdatePhotoMetadata rewrites tags, caption and description of an existing photo.
func (s *SQLiteStorage) UpdatePhotoMetadata(ctx context.Context, photo *models.Photo) error {
	tags := photo.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE photos SET tags = ?, caption = ?, description = ? WHERE id = ?`,
		string(tagsJSON), photo.Caption, photo.Description, photo.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, photo.ID)
	}
	return nil
}

// DeletePhoto removes a photo by ID.
func (s *SQLiteStorage) DeletePhoto(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// CountPhotos returns the total number of photos.
func (s *SQLiteStorage) CountPhotos(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
