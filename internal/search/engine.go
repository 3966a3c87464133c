// Package search answers photo queries: semantic and hybrid text search, similar photos,
// albums and catalog statistics.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/config"
	"github.com/hyperjump/shashin/internal/embedding"
	"github.com/hyperjump/shashin/internal/keyword"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/storage"
	"github.com/hyperjump/shashin/internal/vector"
)

// ErrInvalidQuery wraps every request validation failure.
var ErrInvalidQuery = errors.New("invalid query")

// hybridCandidates is how many candidates per requested result each side of a hybrid
// search contributes before fusion.
const hybridCandidates = 4

// Engine runs queries against storage and the vector store.
type Engine struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectors      *vector.Store
	keywordIndex keyword.KeywordIndex // optional
	search       config.SearchConfig
	album        config.AlbumConfig
	publicURL    string
	diskPaths    []string
	logger       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for query events.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithKeywordIndex enables hybrid search.
func WithKeywordIndex(k keyword.KeywordIndex) Option {
	return func(e *Engine) { e.keywordIndex = k }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectors *vector.Store,
	cfg *config.Config,
	opts ...Option,
) *Engine {
	e := &Engine{
		storage:   storage,
		embedder:  embedder,
		vectors:   vectors,
		search:    cfg.Search,
		album:     cfg.Album,
		publicURL: cfg.Server.PublicURL,
		diskPaths: append(storage.DatabaseFiles(cfg.Storage.DatabasePath), cfg.Storage.BleveIndexPath, cfg.Storage.UploadDir),
		logger:    zap.NewNop(),
	}
	if p := vectors.Path(); p != "" {
		e.diskPaths = append(e.diskPaths, p, p+".ids")
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// hit is a candidate photo before it is joined with its stored record.
type hit struct {
	id           int64
	distance     float32
	score        float64
	keywordScore float64
}

// Search embeds the query text and returns the closest photos within the configured maximum
// distance. With query.Hybrid set and a keyword index available, keyword matches on tags and
// captions are fused into the ranking.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := e.validate(query); err != nil {
		return nil, err
	}
	emb, err := e.embedder.Embed(ctx, query.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	var hits []hit
	if query.Hybrid && e.keywordIndex != nil {
		hits, err = e.hybrid(ctx, query, emb)
	} else {
		hits, err = e.semantic(ctx, emb, query.TopK, 0)
	}
	if err != nil {
		return nil, err
	}
	results, err := e.hydrate(ctx, hits)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("search",
		zap.String("query", query.Query),
		zap.Bool("hybrid", query.Hybrid),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return &models.SearchResponse{
		Query:        query.Query,
		Results:      results,
		TotalResults: len(results),
		QueryTime:    time.Since(start).Milliseconds(),
	}, nil
}

func (e *Engine) validate(query *models.SearchQuery) error {
	query.Query = strings.TrimSpace(query.Query)
	if query.TopK == 0 && e.search.DefaultTopK > 0 {
		query.TopK = e.search.DefaultTopK
	}
	if err := query.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if e.search.MaxTopK > 0 && query.TopK > e.search.MaxTopK {
		return fmt.Errorf("%w: top_k must be between 1 and %d", ErrInvalidQuery, e.search.MaxTopK)
	}
	if e.search.MaxQueryLength > 0 && utf8.RuneCountInString(query.Query) > e.search.MaxQueryLength {
		return fmt.Errorf("%w: query must be at most %d characters", ErrInvalidQuery, e.search.MaxQueryLength)
	}
	return nil
}

// semantic returns up to k photos within the maximum distance of emb, leaving out exclude.
func (e *Engine) semantic(ctx context.Context, emb []float32, k int, exclude int64) ([]hit, error) {
	want := k
	if exclude != 0 {
		k++
	}
	matches, err := e.vectors.Search(ctx, emb, k, e.search.MaxDistance)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	hits := make([]hit, 0, len(matches))
	for _, m := range matches {
		if m.ID == exclude {
			continue
		}
		if len(hits) == want {
			break
		}
		hits = append(hits, hit{id: m.ID, distance: m.Distance, score: SemanticScore(m.Distance)})
	}
	return hits, nil
}

func (e *Engine) hybrid(ctx context.Context, query *models.SearchQuery, emb []float32) ([]hit, error) {
	candidates := query.TopK * hybridCandidates
	matches, err := e.vectors.Search(ctx, emb, candidates, e.search.MaxDistance)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	kwResults, err := e.keywordIndex.Search(ctx, query.Query, candidates, &keyword.SearchOptions{FuzzyEnabled: query.Fuzzy})
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	distances := make(map[int64]float32, len(matches)+len(kwResults))
	for _, m := range matches {
		distances[m.ID] = m.Distance
	}
	var missing []int64
	for _, r := range kwResults {
		if _, ok := distances[r.PhotoID]; !ok {
			missing = append(missing, r.PhotoID)
		}
	}
	if len(missing) > 0 {
		extra, err := e.vectors.Distances(ctx, emb, missing)
		if err != nil {
			return nil, fmt.Errorf("vector distances failed: %w", err)
		}
		for id, d := range extra {
			distances[id] = d
		}
	}

	fused := Fuse(NormalizeKeywordScores(kwResults), distances, e.search.KeywordWeight, e.search.SemanticWeight)
	if len(fused) > query.TopK {
		fused = fused[:query.TopK]
	}
	hits := make([]hit, len(fused))
	for i, f := range fused {
		hits[i] = hit{id: f.PhotoID, distance: f.Distance, score: f.Score, keywordScore: f.KeywordScore}
	}
	return hits, nil
}

// hydrate joins hits with their photo records, preserving order. Hits whose photo no longer
// exists are dropped.
func (e *Engine) hydrate(ctx context.Context, hits []hit) ([]*models.SearchResult, error) {
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	photos, err := e.storage.GetPhotos(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load photos: %w", err)
	}
	results := make([]*models.SearchResult, 0, len(hits))
	for _, h := range hits {
		photo, ok := photos[h.id]
		if !ok {
			e.logger.Debug("vector without photo record", zap.Int64("photo_id", h.id))
			continue
		}
		results = append(results, &models.SearchResult{
			PhotoID:      photo.ID,
			Filename:     photo.Filename,
			ImageURL:     e.ImageURL(photo.Filename),
			Tags:         photo.Tags,
			Caption:      photo.Caption,
			Distance:     h.distance,
			Score:        h.score,
			KeywordScore: h.keywordScore,
			Rank:         len(results) + 1,
		})
	}
	return results, nil
}

// ImageURL returns the public URL of an uploaded file.
func (e *Engine) ImageURL(filename string) string {
	base := e.publicURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "uploads/" + filename
}

// Similar returns up to topK photos closest to the photo with the given ID, not including
// the photo itself.
func (e *Engine) Similar(ctx context.Context, photoID int64, topK int) (*models.SearchResponse, error) {
	start := time.Now()
	if topK == 0 {
		topK = models.DefaultTopK
	}
	if topK < 1 || topK > models.MaxTopK {
		return nil, fmt.Errorf("%w: top_k must be between 1 and %d", ErrInvalidQuery, models.MaxTopK)
	}
	photo, err := e.storage.GetPhoto(ctx, photoID)
	if err != nil {
		return nil, err
	}
	emb, err := e.vectors.Vector(ctx, photoID)
	if err != nil {
		return nil, err
	}
	hits, err := e.semantic(ctx, emb, topK, photoID)
	if err != nil {
		return nil, err
	}
	results, err := e.hydrate(ctx, hits)
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Query:        photo.Filename,
		Results:      results,
		TotalResults: len(results),
		QueryTime:    time.Since(start).Milliseconds(),
	}, nil
}
