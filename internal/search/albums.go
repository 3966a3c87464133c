package search

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/album"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/vector"
)

// summaryTags is how many of the most frequent tags name an album.
const summaryTags = 3

// Albums groups the stored photos into albums using the requested strategy. Unset fields of
// query fall back to the configured album defaults. Photo distances are measured from the
// first photo of each album.
func (e *Engine) Albums(ctx context.Context, query *models.AlbumQuery) (*models.AlbumsResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	opts := e.albumOptions(query)
	c, err := album.New(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	res, err := album.Run(ctx, e.vectors, c)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, a := range res.Albums {
		ids = append(ids, a...)
	}
	photos, err := e.storage.GetPhotos(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load photos: %w", err)
	}

	resp := &models.AlbumsResponse{Strategy: c.Name(), Albums: make([]*models.Album, 0, len(res.Albums))}
	for _, group := range res.Albums {
		a := e.buildAlbum(group, photos, res.Snapshot)
		if len(a.Photos) > 0 {
			resp.Albums = append(resp.Albums, a)
		}
	}
	e.logger.Debug("albums built",
		zap.String("strategy", c.Name()), zap.Int("albums", len(resp.Albums)), zap.Int("photos", len(ids)))
	return resp, nil
}

func (e *Engine) albumOptions(query *models.AlbumQuery) album.Options {
	opts := album.Options{
		Strategy:          query.Strategy,
		TopK:              query.TopK,
		AlbumSize:         query.AlbumSize,
		DistanceThreshold: e.album.DistanceThreshold,
		Seed:              e.album.Seed,
		MaxIterations:     e.album.MaxIterations,
	}
	if opts.Strategy == "" {
		opts.Strategy = e.album.Strategy
	}
	if opts.TopK == 0 {
		opts.TopK = e.album.TopK
	}
	if opts.TopK == 0 {
		opts.TopK = models.DefaultAlbumCount
	}
	if opts.AlbumSize == 0 {
		opts.AlbumSize = e.album.AlbumSize
	}
	if query.DistanceThreshold != nil {
		opts.DistanceThreshold = *query.DistanceThreshold
	}
	if query.Seed != nil {
		opts.Seed = *query.Seed
		opts.Rand = rand.New(rand.NewSource(*query.Seed))
	}
	return opts
}

func (e *Engine) buildAlbum(group []int64, photos map[int64]*models.Photo, snap vector.Index) *models.Album {
	a := &models.Album{Photos: make([]*models.SearchResult, 0, len(group))}
	var lead []float32
	var members []*models.Photo
	for _, id := range group {
		photo, ok := photos[id]
		if !ok {
			continue
		}
		vec, _ := snap.Vector(id)
		var distance float32
		if lead == nil {
			lead = vec
		} else if vec != nil {
			distance = vector.SquaredL2(lead, vec)
		}
		members = append(members, photo)
		a.Photos = append(a.Photos, &models.SearchResult{
			PhotoID:  photo.ID,
			Filename: photo.Filename,
			ImageURL: e.ImageURL(photo.Filename),
			Tags:     photo.Tags,
			Caption:  photo.Caption,
			Distance: distance,
			Rank:     len(a.Photos) + 1,
		})
	}
	a.Summary = Summarize(members)
	return a
}

// Summarize names an album after its most frequent tags, falling back to the first caption.
func Summarize(photos []*models.Photo) string {
	if len(photos) == 0 {
		return ""
	}
	counts := make(map[string]int)
	for _, p := range photos {
		for _, t := range p.Tags {
			counts[t]++
		}
	}
	tags := make([]string, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > summaryTags {
		tags = tags[:summaryTags]
	}

	noun := "photos"
	if len(photos) == 1 {
		noun = "photo"
	}
	switch {
	case len(tags) > 0:
		return fmt.Sprintf("%d %s: %s", len(photos), noun, strings.Join(tags, ", "))
	case photos[0].Caption != "":
		return fmt.Sprintf("%d %s: %s", len(photos), noun, photos[0].Caption)
	default:
		return fmt.Sprintf("%d %s", len(photos), noun)
	}
}
