// Package ingest adds photos to the catalog: it stores the file, describes it, records it in
// the database and indexes its embedding and keywords.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/describe"
	"github.com/hyperjump/shashin/internal/embedding"
	"github.com/hyperjump/shashin/internal/fileid"
	"github.com/hyperjump/shashin/internal/keyword"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/storage"
	"github.com/hyperjump/shashin/internal/vector"
)

// AllowedExtensions are the image types accepted for upload and ingest.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

var (
	ErrUnsupportedType = fmt.Errorf("invalid file type, allowed: %s", strings.Join(AllowedExtensions, ", "))
	ErrEmptyFile       = errors.New("empty file")
	ErrNoFilename      = errors.New("no filename provided")
)

// Ingester indexes photos into storage, the vector store and the keyword index.
type Ingester struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectors      *vector.Store
	keywordIndex keyword.KeywordIndex // optional
	describer    *describe.Describer
	uploadDir    string
	extensions   []string
	workers      int
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a logger for ingest events.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) { in.logger = l }
}

// WithKeywordIndex also indexes photo metadata for keyword search.
func WithKeywordIndex(k keyword.KeywordIndex) Option {
	return func(in *Ingester) { in.keywordIndex = k }
}

// WithExtensions restricts ingest to the given extensions instead of AllowedExtensions.
func WithExtensions(exts []string) Option {
	return func(in *Ingester) {
		if len(exts) > 0 {
			in.extensions = exts
		}
	}
}

// WithWorkers bounds the number of concurrent embeddings during Reindex.
func WithWorkers(n int) Option {
	return func(in *Ingester) {
		if n > 0 {
			in.workers = n
		}
	}
}

// NewIngester creates an ingester. Uploaded files are written to uploadDir.
func NewIngester(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectors *vector.Store,
	uploadDir string,
	opts ...Option,
) *Ingester {
	in := &Ingester{
		storage:    storage,
		embedder:   embedder,
		vectors:    vectors,
		describer:  describe.NewDescriber(),
		uploadDir:  uploadDir,
		extensions: AllowedExtensions,
		workers:    4,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Extensions returns the accepted file extensions.
func (in *Ingester) Extensions() []string {
	return in.extensions
}

// Upload saves content under a timestamped name in the upload directory and ingests it.
// Content identical to an existing photo is not stored again; the existing photo is returned
// with duplicate set.
func (in *Ingester) Upload(ctx context.Context, originalName string, content []byte) (photo *models.Photo, duplicate bool, err error) {
	if strings.TrimSpace(originalName) == "" {
		return nil, false, ErrNoFilename
	}
	if !extensionAllowed(filepath.Ext(originalName), in.extensions) {
		return nil, false, ErrUnsupportedType
	}
	if len(content) == 0 {
		return nil, false, ErrEmptyFile
	}
	checksum := fileid.Checksum(content)
	if existing, err := in.storage.GetPhotoByChecksum(ctx, checksum); err == nil {
		in.logger.Info("upload matches existing photo",
			zap.String("filename", originalName), zap.Int64("photo_id", existing.ID))
		return existing, true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup checksum: %w", err)
	}

	if err := os.MkdirAll(in.uploadDir, 0755); err != nil {
		return nil, false, fmt.Errorf("create upload directory: %w", err)
	}
	name := fileid.UniqueUploadName(in.uploadDir, originalName, in.now())
	path := filepath.Join(in.uploadDir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return nil, false, fmt.Errorf("save upload: %w", err)
	}
	photo, err = in.ingest(ctx, path, checksum)
	if err != nil {
		_ = os.Remove(path)
		return nil, false, err
	}
	return photo, false, nil
}

// IngestFile ingests the image at path. A file already recorded under the same path is
// described again and re-indexed only if its description changed. A new path whose content
// matches an existing photo is skipped and the existing photo returned.
func (in *Ingester) IngestFile(ctx context.Context, path string) (*models.Photo, error) {
	in.logger.Debug("ingest file", zap.String("path", path))
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if !extensionAllowed(filepath.Ext(absPath), in.extensions) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(absPath), ErrUnsupportedType)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%s: %w", absPath, ErrEmptyFile)
	}
	if existing, err := in.storage.GetPhotoByPath(ctx, absPath); err == nil {
		return in.refresh(ctx, existing)
	}
	checksum, err := fileid.FileChecksum(absPath)
	if err != nil {
		return nil, err
	}
	if existing, err := in.storage.GetPhotoByChecksum(ctx, checksum); err == nil {
		in.logger.Info("ingest skipping duplicate content",
			zap.String("path", absPath), zap.Int64("photo_id", existing.ID))
		return existing, nil
	}
	return in.ingest(ctx, absPath, checksum)
}

// ingest describes, records and indexes the file at absPath. On failure after the row was
// created the row and anything already indexed for it are removed again, so storage, the
// vector store and the keyword index stay in step.
func (in *Ingester) ingest(ctx context.Context, absPath, checksum string) (*models.Photo, error) {
	desc, err := in.describer.Describe(absPath)
	if err != nil {
		return nil, fmt.Errorf("describe photo: %w", err)
	}
	photo, err := in.storage.CreatePhoto(ctx, &models.PhotoInput{
		Filename:    filepath.Base(absPath),
		Filepath:    absPath,
		Checksum:    checksum,
		Tags:        desc.Tags,
		Caption:     desc.Caption,
		Description: desc.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}
	if err := in.index(ctx, photo); err != nil {
		in.rollback(context.WithoutCancel(ctx), photo.ID)
		return nil, err
	}
	in.logger.Info("photo ingested",
		zap.Int64("photo_id", photo.ID), zap.String("filename", photo.Filename), zap.Strings("tags", photo.Tags))
	return photo, nil
}

// refresh re-reads the description of a known photo, typically after its sidecar changed.
func (in *Ingester) refresh(ctx context.Context, photo *models.Photo) (*models.Photo, error) {
	desc, err := in.describer.Describe(photo.Filepath)
	if err != nil {
		return nil, fmt.Errorf("describe photo: %w", err)
	}
	if slices.Equal(desc.Tags, photo.Tags) && desc.Caption == photo.Caption && desc.Description == photo.Description {
		in.logger.Debug("ingest skipping known file", zap.String("path", photo.Filepath))
		return photo, nil
	}
	photo.Tags = desc.Tags
	photo.Caption = desc.Caption
	photo.Description = desc.Description
	if err := in.storage.UpdatePhotoMetadata(ctx, photo); err != nil {
		return nil, fmt.Errorf("failed to update photo: %w", err)
	}
	if err := in.index(ctx, photo); err != nil {
		return nil, err
	}
	in.logger.Info("photo metadata refreshed", zap.Int64("photo_id", photo.ID), zap.Strings("tags", photo.Tags))
	return photo, nil
}

// rollback undoes a partial ingest. Failures are logged; the original error is what the
// caller reports.
func (in *Ingester) rollback(ctx context.Context, id int64) {
	if in.keywordIndex != nil {
		if err := in.keywordIndex.Delete(ctx, id); err != nil {
			in.logger.Error("failed to roll back keyword entry", zap.Int64("photo_id", id), zap.Error(err))
		}
	}
	if _, err := in.vectors.Remove(ctx, id); err != nil {
		in.logger.Error("failed to roll back vector", zap.Int64("photo_id", id), zap.Error(err))
	}
	if err := in.storage.DeletePhoto(ctx, id); err != nil {
		in.logger.Error("failed to roll back photo row", zap.Int64("photo_id", id), zap.Error(err))
	}
}

func (in *Ingester) index(ctx context.Context, photo *models.Photo) error {
	emb, err := in.embedder.Embed(ctx, embedding.PhotoText(photo.Tags, photo.Caption, photo.Description))
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}
	if err := in.vectors.Add(ctx, photo.ID, emb); err != nil {
		return fmt.Errorf("failed to index vector: %w", err)
	}
	if in.keywordIndex != nil {
		if err := in.keywordIndex.Index(ctx, photo); err != nil {
			return fmt.Errorf("failed to index keywords: %w", err)
		}
	}
	return nil
}

// IngestDirectory walks dir recursively and ingests each image with an accepted extension.
// Returns the number of files ingested or skipped as known, and the first error encountered.
func (in *Ingester) IngestDirectory(ctx context.Context, dir string) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !extensionAllowed(filepath.Ext(path), in.extensions) {
			return nil
		}
		// Resolve symlinks so we only ingest regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if _, ingestErr := in.IngestFile(ctx, path); ingestErr != nil {
			return ingestErr
		}
		n++
		return nil
	})
	return n, err
}

// AddEmbedding stores a caller-supplied embedding for an existing photo, replacing any
// previous one.
func (in *Ingester) AddEmbedding(ctx context.Context, photoID int64, emb []float32) error {
	if _, err := in.storage.GetPhoto(ctx, photoID); err != nil {
		return err
	}
	return in.vectors.Add(ctx, photoID, emb)
}

// DeletePhoto removes a photo from the keyword index, the vector store and storage. Files
// inside the upload directory are deleted too; watched files belong to the user and stay.
func (in *Ingester) DeletePhoto(ctx context.Context, id int64) error {
	photo, err := in.storage.GetPhoto(ctx, id)
	if err != nil {
		return err
	}
	if err := in.remove(ctx, photo); err != nil {
		return err
	}
	if in.ownsFile(photo.Filepath) {
		if err := os.Remove(photo.Filepath); err != nil && !os.IsNotExist(err) {
			in.logger.Warn("failed to delete photo file", zap.String("path", photo.Filepath), zap.Error(err))
		}
	}
	return nil
}

// RemovePath forgets the photo recorded at path, typically after the file was deleted.
// Unknown paths are ignored.
func (in *Ingester) RemovePath(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	photo, err := in.storage.GetPhotoByPath(ctx, absPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return in.remove(ctx, photo)
}

func (in *Ingester) remove(ctx context.Context, photo *models.Photo) error {
	in.logger.Debug("deleting photo", zap.Int64("photo_id", photo.ID))
	if in.keywordIndex != nil {
		if err := in.keywordIndex.Delete(ctx, photo.ID); err != nil {
			return fmt.Errorf("failed to delete from keyword index: %w", err)
		}
	}
	if _, err := in.vectors.Remove(ctx, photo.ID); err != nil {
		return fmt.Errorf("failed to delete from vector store: %w", err)
	}
	if err := in.storage.DeletePhoto(ctx, photo.ID); err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	in.logger.Info("photo deleted", zap.Int64("photo_id", photo.ID), zap.String("filename", photo.Filename))
	return nil
}

func (in *Ingester) ownsFile(path string) bool {
	if in.uploadDir == "" {
		return false
	}
	rel, err := filepath.Rel(in.uploadDir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
