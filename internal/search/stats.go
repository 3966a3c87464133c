package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/storage"
)

// Stats reports photo and embedding counts and the disk space used by the catalog.
func (e *Engine) Stats(ctx context.Context) (*models.Stats, error) {
	count, err := e.storage.CountPhotos(ctx)
	if err != nil {
		return nil, fmt.Errorf("count photos: %w", err)
	}
	if err := e.vectors.Load(ctx); err != nil {
		return nil, err
	}
	vs := e.vectors.Stats()
	disk, err := storage.DiskUsageBytes(e.diskPaths...)
	if err != nil {
		e.logger.Warn("failed to measure disk usage", zap.Error(err))
	}
	return &models.Stats{
		TotalPhotos:     count,
		TotalEmbeddings: vs.TotalEmbeddings,
		Dimension:       vs.Dimension,
		IndexType:       vs.IndexType,
		DiskUsageBytes:  disk,
	}, nil
}
