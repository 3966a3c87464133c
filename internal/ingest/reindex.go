package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/shashin/internal/embedding"
	"github.com/hyperjump/shashin/internal/vector"
)

// Reindex re-embeds every stored photo and rewrites the vector store in one save. Keyword
// documents are refreshed as well. Use it after changing the embedding model or when the
// index files were lost. Returns the number of photos indexed.
func (in *Ingester) Reindex(ctx context.Context) (int, error) {
	start := time.Now()
	photos, err := in.storage.AllPhotos(ctx)
	if err != nil {
		return 0, fmt.Errorf("list photos: %w", err)
	}

	entries := make([]vector.Entry, len(photos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)
	for i, p := range photos {
		g.Go(func() error {
			emb, err := in.embedder.Embed(gctx, embedding.PhotoText(p.Tags, p.Caption, p.Description))
			if err != nil {
				return fmt.Errorf("embed photo %d: %w", p.ID, err)
			}
			entries[i] = vector.Entry{ID: p.ID, Vector: emb}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := in.vectors.Replace(ctx, entries); err != nil {
		return 0, fmt.Errorf("rewrite vector store: %w", err)
	}

	if in.keywordIndex != nil {
		for _, p := range photos {
			if err := in.keywordIndex.Index(ctx, p); err != nil {
				return 0, fmt.Errorf("failed to index keywords: %w", err)
			}
		}
	}
	in.logger.Info("reindex complete",
		zap.Int("photos", len(photos)), zap.Duration("elapsed", time.Since(start)))
	return len(photos), nil
}
