package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/shashin/internal/config"
	"github.com/hyperjump/shashin/internal/keyword"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/storage"
	"github.com/hyperjump/shashin/internal/vector"
)

// mapEmbedder returns fixed vectors for known texts and an error for anything else.
type mapEmbedder map[string][]float32

func (m mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := m[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no vector for %q", text)
}

func (m mapEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m mapEmbedder) Dimensions() int { return 4 }
func (m mapEmbedder) Close() error    { return nil }

type fixture struct {
	engine   *Engine
	storage  storage.Storage
	vectors  *vector.Store
	keywords *keyword.BleveIndex
	ids      map[string]int64
}

// newFixture stores three photos: "sunset" and "shore" close together, "peak" far away.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	vectors, err := vector.Open("", 4)
	if err != nil {
		t.Fatal(err)
	}
	kw, err := keyword.NewMemoryIndex()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	f := &fixture{storage: store, vectors: vectors, keywords: kw, ids: map[string]int64{}}
	photos := []struct {
		name string
		tags []string
		vec  []float32
	}{
		{"sunset", []string{"beach", "sunset"}, []float32{1, 0, 0, 0}},
		{"shore", []string{"beach", "waves"}, []float32{0.9, 0.1, 0, 0}},
		{"peak", []string{"mountain"}, []float32{0, 0, 1, 0}},
	}
	for _, p := range photos {
		photo, err := store.CreatePhoto(ctx, &models.PhotoInput{
			Filename: p.name + ".jpg",
			Filepath: "/photos/" + p.name + ".jpg",
			Tags:     p.tags,
			Caption:  "A photo of " + strings.Join(p.tags, " "),
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := vectors.Add(ctx, photo.ID, p.vec); err != nil {
			t.Fatal(err)
		}
		if err := kw.Index(ctx, photo); err != nil {
			t.Fatal(err)
		}
		f.ids[p.name] = photo.ID
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.PublicURL = "http://photos.test"
	cfg.Storage = config.StorageConfig{}
	emb := mapEmbedder{
		"beach":    {1, 0, 0, 0},
		"mountain": {0, 1, 0, 0},
	}
	f.engine = NewEngine(store, emb, vectors, cfg, WithKeywordIndex(kw))
	return f
}

func TestEngine_Search(t *testing.T) {
	f := newFixture(t)
	resp, err := f.engine.Search(context.Background(), &models.SearchQuery{Query: "beach"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.TotalResults != 2 || len(resp.Results) != 2 {
		t.Fatalf("TotalResults = %d, want 2: %+v", resp.TotalResults, resp.Results)
	}
	first, second := resp.Results[0], resp.Results[1]
	if first.PhotoID != f.ids["sunset"] || second.PhotoID != f.ids["shore"] {
		t.Errorf("order = [%d %d], want [sunset shore]", first.PhotoID, second.PhotoID)
	}
	if first.Distance > 1e-6 || second.Distance <= first.Distance {
		t.Errorf("distances = [%f %f]", first.Distance, second.Distance)
	}
	if first.ImageURL != "http://photos.test/uploads/sunset.jpg" {
		t.Errorf("ImageURL = %q", first.ImageURL)
	}
	if first.Rank != 1 || second.Rank != 2 {
		t.Errorf("ranks = [%d %d]", first.Rank, second.Rank)
	}
	if resp.Query != "beach" {
		t.Errorf("Query = %q", resp.Query)
	}
}

func TestEngine_Search_TopK(t *testing.T) {
	f := newFixture(t)
	resp, err := f.engine.Search(context.Background(), &models.SearchQuery{Query: "beach", TopK: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].PhotoID != f.ids["sunset"] {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestEngine_Search_Validation(t *testing.T) {
	f := newFixture(t)
	for _, q := range []*models.SearchQuery{
		{Query: ""},
		{Query: "   "},
		{Query: strings.Repeat("あ", 201)},
		{Query: "beach", TopK: 51},
		{Query: "beach", TopK: -1},
	} {
		if _, err := f.engine.Search(context.Background(), q); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("Search(%q, %d) error = %v, want ErrInvalidQuery", q.Query, q.TopK, err)
		}
	}
}

func TestEngine_Search_Hybrid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// "mountain" embeds far from every photo, so only the keyword match can surface it.
	resp, err := f.engine.Search(ctx, &models.SearchQuery{Query: "mountain"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("semantic results = %+v, want none", resp.Results)
	}

	resp, err = f.engine.Search(ctx, &models.SearchQuery{Query: "mountain", Hybrid: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) == 0 || resp.Results[0].PhotoID != f.ids["peak"] {
		t.Fatalf("hybrid results = %+v, want peak first", resp.Results)
	}
	if resp.Results[0].KeywordScore != 1 {
		t.Errorf("KeywordScore = %f, want 1", resp.Results[0].KeywordScore)
	}
}

func TestEngine_Similar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.engine.Similar(ctx, f.ids["sunset"], 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].PhotoID != f.ids["shore"] {
		t.Errorf("similar = %+v, want [shore]", resp.Results)
	}

	if _, err := f.engine.Similar(ctx, 999, 5); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown photo error = %v, want ErrNotFound", err)
	}
	if _, err := f.engine.Similar(ctx, f.ids["sunset"], 100); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("top_k 100 error = %v, want ErrInvalidQuery", err)
	}
}

func TestEngine_Albums_Greedy(t *testing.T) {
	f := newFixture(t)
	seed := int64(7)
	resp, err := f.engine.Albums(context.Background(), &models.AlbumQuery{Seed: &seed})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Strategy != "greedy" {
		t.Errorf("Strategy = %q", resp.Strategy)
	}
	if len(resp.Albums) != 2 {
		t.Fatalf("albums = %d, want 2", len(resp.Albums))
	}
	for _, a := range resp.Albums {
		if a.Photos[0].Distance != 0 {
			t.Errorf("lead photo distance = %f, want 0", a.Photos[0].Distance)
		}
		switch len(a.Photos) {
		case 2:
			if !strings.HasPrefix(a.Summary, "2 photos: beach") {
				t.Errorf("Summary = %q", a.Summary)
			}
			if a.Photos[1].Distance <= 0 {
				t.Errorf("second photo distance = %f, want > 0", a.Photos[1].Distance)
			}
		case 1:
			if a.Summary != "1 photo: mountain" {
				t.Errorf("Summary = %q", a.Summary)
			}
		default:
			t.Errorf("unexpected album size %d", len(a.Photos))
		}
	}
}

func TestEngine_Albums_ZeroThreshold(t *testing.T) {
	f := newFixture(t)
	seed := int64(7)
	zero := float32(0)
	resp, err := f.engine.Albums(context.Background(), &models.AlbumQuery{Seed: &seed, DistanceThreshold: &zero})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Albums) != 3 {
		t.Fatalf("albums = %d, want 3 singletons", len(resp.Albums))
	}
	for _, a := range resp.Albums {
		if len(a.Photos) != 1 {
			t.Errorf("album has %d photos, want 1", len(a.Photos))
		}
	}
}

func TestEngine_Albums_RejectsOversizedAlbum(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Albums(context.Background(), &models.AlbumQuery{AlbumSize: models.MaxAlbumSize + 1})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestEngine_Albums_KMeans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.engine.Albums(ctx, &models.AlbumQuery{Strategy: "kmeans", TopK: 2})
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, a := range resp.Albums {
		total += len(a.Photos)
	}
	if total != 3 {
		t.Errorf("kmeans placed %d photos, want 3", total)
	}

	resp, err = f.engine.Albums(ctx, &models.AlbumQuery{Strategy: "kmeans", TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Albums) != 0 {
		t.Errorf("albums = %d, want 0 when fewer photos than albums", len(resp.Albums))
	}

	if _, err := f.engine.Albums(ctx, &models.AlbumQuery{Strategy: "dbscan"}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("unknown strategy error = %v, want ErrInvalidQuery", err)
	}
	if _, err := f.engine.Albums(ctx, &models.AlbumQuery{AlbumSize: -1}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("negative album_size error = %v, want ErrInvalidQuery", err)
	}
}

func TestEngine_Stats(t *testing.T) {
	f := newFixture(t)
	stats, err := f.engine.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalPhotos != 3 || stats.TotalEmbeddings != 3 || stats.Dimension != 4 || stats.IndexType != "flat_l2" {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestEngine_ImageURL(t *testing.T) {
	e := &Engine{publicURL: "/"}
	if got := e.ImageURL("a.jpg"); got != "/uploads/a.jpg" {
		t.Errorf("ImageURL = %q", got)
	}
	e.publicURL = "https://cdn.example.com/photos"
	if got := e.ImageURL("a.jpg"); got != "https://cdn.example.com/photos/uploads/a.jpg" {
		t.Errorf("ImageURL = %q", got)
	}
}
