// Package storage defines the persistence interface for photo records.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/shashin/internal/models"
)

// ErrNotFound is returned when no photo matches the lookup.
var ErrNotFound = errors.New("photo not found")

// ErrDuplicate is returned when a photo with the same filepath or checksum already exists.
var ErrDuplicate = errors.New("photo already exists")

// Storage defines photo record persistence operations.
type Storage interface {
	CreatePhoto(ctx context.Context, in *models.PhotoInput) (*models.Photo, error)
	GetPhoto(ctx context.Context, id int64) (*models.Photo, error)
	GetPhotoByPath(ctx context.Context, path string) (*models.Photo, error)
	GetPhotoByChecksum(ctx context.Context, checksum string) (*models.Photo, error)
	// GetPhotos returns the photos with the given IDs keyed by ID; unknown IDs are absent.
	GetPhotos(ctx context.Context, ids []int64) (map[int64]*models.Photo, error)
	ListPhotos(ctx context.Context, skip, limit int) ([]*models.Photo, error)
	AllPhotos(ctx context.Context) ([]*models.Photo, error)
	UpdatePhotoMetadata(ctx context.Context, photo *models.Photo) error
	DeletePhoto(ctx context.Context, id int64) error

	CountPhotos(ctx context.Context) (int64, error)

	Close() error
}
