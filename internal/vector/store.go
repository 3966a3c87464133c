package vector

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/hyperjump/shashin/pkg/utils"
	"go.uber.org/zap"
)

// Stats describes the store contents.
type Stats struct {
	TotalEmbeddings int    `json:"total_embeddings"`
	Dimension       int    `json:"dimension"`
	IndexType       string `json:"index_type"`
}

// Entry is one (photo ID, vector) pair for batch inserts.
type Entry struct {
	ID     int64
	Vector []float32
}

// Store is the durable photo embedding store. Every read reloads the index file so writes from
// other processes are visible; every write reloads, modifies and rewrites the whole store.
// The mutex serializes those cycles within one process only.
type Store struct {
	path      string
	dim       int
	indexType IndexType
	normalize bool
	compress  bool
	logger    *zap.Logger

	mu    sync.Mutex
	index *FlatIndex
	stamp uint64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets a logger for debug output (loads, saves, inserts).
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithNormalize controls whether vectors are L2-normalized on insert and query.
// Distance thresholds must be chosen for the selected convention.
func WithNormalize(normalize bool) StoreOption {
	return func(s *Store) { s.normalize = normalize }
}

// WithCompression enables zstd compression of the index file payload.
func WithCompression(compress bool) StoreOption {
	return func(s *Store) { s.compress = compress }
}

// WithIndexType sets the index variant. Only flat is supported.
func WithIndexType(t IndexType) StoreOption {
	return func(s *Store) { s.indexType = t }
}

// Open binds a store of dimension dim to path and loads any existing file pair.
// A missing pair yields an empty store; a pair that exists but cannot be parsed
// returns *CorruptStoreError and nothing is written. An empty path keeps the store in memory.
func Open(path string, dim int, opts ...StoreOption) (*Store, error) {
	index, err := NewFlatIndex(dim)
	if err != nil {
		return nil, err
	}
	s := &Store{
		path:      path,
		dim:       dim,
		indexType: IndexTypeFlat,
		normalize: true,
		logger:    zap.NewNop(),
		index:     index,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := ParseIndexType(string(s.indexType)); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return nil, err
	}
	s.logger.Debug("vector store opened",
		zap.String("path", path),
		zap.Int("dimension", dim),
		zap.Int("vectors", s.index.Len()),
		zap.Bool("normalize", s.normalize))
	return s, nil
}

// Path returns the index file path.
func (s *Store) Path() string {
	return s.path
}

// Dim returns the configured vector dimension.
func (s *Store) Dim() int {
	return s.dim
}

// Add stores vector under id and persists the store before returning. An existing vector for
// id is replaced.
func (s *Store) Add(ctx context.Context, id int64, vector []float32) error {
	return s.AddBatch(ctx, []Entry{{ID: id, Vector: vector}})
}

// AddBatch stores all entries and persists once. Entries are validated before anything changes.
func (s *Store) AddBatch(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.validate(e.ID, e.Vector); err != nil {
			return fmt.Errorf("photo %d: %w", e.ID, err)
		}
	}
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.index.Add(e.ID, s.prepare(e.Vector)); err != nil {
			return err
		}
	}
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.logger.Debug("vectors added", zap.Int("count", len(entries)), zap.Int("total", s.index.Len()))
	return nil
}

// Replace swaps the whole store content for entries and persists it.
func (s *Store) Replace(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.validate(e.ID, e.Vector); err != nil {
			return fmt.Errorf("photo %d: %w", e.ID, err)
		}
	}
	index, err := NewFlatIndex(s.dim)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := index.Add(e.ID, s.prepare(e.Vector)); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = index
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.logger.Debug("vector store replaced", zap.Int("total", index.Len()))
	return nil
}

// Remove drops the vectors for ids and persists the store. It returns how many were present.
func (s *Store) Remove(ctx context.Context, ids ...int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if s.index.Remove(id) {
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := s.saveLocked(); err != nil {
		return 0, err
	}
	s.logger.Debug("vectors removed", zap.Int("count", removed), zap.Int("total", s.index.Len()))
	return removed, nil
}

// Load reloads the store from disk, replacing the in-memory state.
func (s *Store) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

// Search reloads the store and returns up to k stored vectors closest to query whose squared
// L2 distance is at most maxDistance, in ascending distance order. An empty store yields an
// empty result.
func (s *Store) Search(ctx context.Context, query []float32, k int, maxDistance float32) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, ErrInvalidK
	}
	if maxDistance < 0 {
		return nil, ErrInvalidDistance
	}
	if err := s.validateVector(query); err != nil {
		return nil, err
	}
	q := s.prepare(query)

	s.mu.Lock()
	if err := s.reloadLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	matches, err := s.index.Search(q, k)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.ID == invalidID || m.Distance > maxDistance {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Distances reloads the store and returns the squared L2 distance from query to each of ids
// that has a stored vector. Unknown ids are left out of the result.
func (s *Store) Distances(ctx context.Context, query []float32, ids []int64) (map[int64]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validateVector(query); err != nil {
		return nil, err
	}
	q := s.prepare(query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return nil, err
	}
	out := make(map[int64]float32, len(ids))
	for _, id := range ids {
		if v, ok := s.index.Vector(id); ok {
			out[id] = SquaredL2(q, v)
		}
	}
	return out, nil
}

// Vector reloads the store and returns a copy of the vector stored for id.
func (s *Store) Vector(ctx context.Context, id int64) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return nil, err
	}
	v, ok := s.index.Vector(id)
	if !ok {
		return nil, fmt.Errorf("photo %d: %w", id, ErrNotFound)
	}
	return v, nil
}

// Snapshot reloads the store and returns an independent copy of the index.
func (s *Store) Snapshot(ctx context.Context) (Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return nil, err
	}
	return s.index.Clone(), nil
}

// Stats reports the in-memory view without touching disk.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TotalEmbeddings: s.index.Len(),
		Dimension:       s.dim,
		IndexType:       string(s.indexType),
	}
}

func (s *Store) validate(id int64, vector []float32) error {
	if id <= 0 {
		return ErrInvalidID
	}
	return s.validateVector(vector)
}

func (s *Store) validateVector(vector []float32) error {
	if len(vector) != s.dim {
		return &DimensionMismatchError{Got: len(vector), Want: s.dim}
	}
	if !finite(vector) {
		return ErrInvalidVector
	}
	return nil
}

// prepare returns a copy of vector, normalized when the store is configured to.
func (s *Store) prepare(vector []float32) []float32 {
	v := make([]float32, len(vector))
	copy(v, vector)
	if s.normalize {
		utils.NormalizeL2(v)
	}
	return v
}

func (s *Store) reloadLocked() error {
	if s.path == "" {
		return nil
	}
	snap, ok, err := loadPair(s.path, s.dim)
	if err != nil {
		return err
	}
	if !ok {
		index, _ := NewFlatIndex(s.dim)
		s.index = index
		s.stamp = 0
		return nil
	}
	s.index = newFlatIndexFrom(s.dim, snap.ids, snap.data)
	s.stamp = snap.stamp
	return nil
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	ids, data := s.index.Export()
	stamp := rand.Uint64()
	for stamp == s.stamp {
		stamp = rand.Uint64()
	}
	if err := savePair(s.path, s.dim, ids, data, stamp, s.compress); err != nil {
		return fmt.Errorf("save vector store: %w", err)
	}
	s.stamp = stamp
	s.logger.Debug("vector store saved", zap.String("path", s.path), zap.Int("vectors", len(ids)))
	return nil
}
