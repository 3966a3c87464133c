// Package embedding turns photo descriptions and search queries into vectors.
package embedding

import (
	"context"
	"strings"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// PhotoText builds the text embedded for a photo from its generated metadata.
// Caption comes first so truncating tokenizers keep the most specific words.
func PhotoText(tags []string, caption, description string) string {
	parts := make([]string, 0, 3)
	if s := strings.TrimSpace(caption); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(description); s != "" {
		parts = append(parts, s)
	}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	return strings.Join(parts, "\n")
}

func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
