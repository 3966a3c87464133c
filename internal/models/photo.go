// Package models defines core data structures for photos, queries, search results and albums.
package models

import "time"

// Photo represents a stored photo with its generated metadata.
type Photo struct {
	ID          int64     `json:"id" db:"id"`
	Filename    string    `json:"filename" db:"filename"`
	Filepath    string    `json:"-" db:"filepath"`
	Checksum    string    `json:"checksum,omitempty" db:"checksum"`
	Tags        []string  `json:"tags" db:"tags"`
	Caption     string    `json:"caption" db:"caption"`
	Description string    `json:"description,omitempty" db:"description"`
	ImageURL    string    `json:"image_url,omitempty" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// PhotoInput is the input for creating a photo record.
type PhotoInput struct {
	Filename    string   `json:"filename"`
	Filepath    string   `json:"filepath"`
	Checksum    string   `json:"checksum,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Caption     string   `json:"caption,omitempty"`
	Description string   `json:"description,omitempty"`
}

// PhotoDetail is a photo together with its stored embedding.
type PhotoDetail struct {
	*Photo
	Embedding []float32 `json:"embedding,omitempty"`
}

// UploadResponse is returned after a photo was ingested.
type UploadResponse struct {
	ID        int64    `json:"id"`
	Filename  string   `json:"filename"`
	ImageURL  string   `json:"image_url"`
	Tags      []string `json:"tags"`
	Caption   string   `json:"caption"`
	Duplicate bool     `json:"duplicate,omitempty"`
	Message   string   `json:"message"`
}

// EmbeddingInput adds or replaces a raw embedding for an existing photo.
type EmbeddingInput struct {
	PhotoID   int64     `json:"photo_id"`
	Embedding []float32 `json:"embedding"`
}
