package vector

import (
	"fmt"
	"sort"
	"sync"
)

// FlatIndex is an exhaustive squared-L2 index. Vectors live in one contiguous slice;
// slot i holds data[i*dim:(i+1)*dim] and ids[i] is its photo ID.
// Replaced and removed vectors leave a tombstone slot until the index is compacted.
type FlatIndex struct {
	dim   int
	ids   []int64
	data  []float32
	slots map[int64]int
	dead  int
	mu    sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dim:   dim,
		ids:   make([]int64, 0),
		data:  make([]float32, 0),
		slots: make(map[int64]int),
	}, nil
}

// newFlatIndexFrom builds an index from already validated slot data. The slices are owned
// by the returned index.
func newFlatIndexFrom(dim int, ids []int64, data []float32) *FlatIndex {
	slots := make(map[int64]int, len(ids))
	for i, id := range ids {
		slots[id] = i
	}
	return &FlatIndex{dim: dim, ids: ids, data: data, slots: slots}
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() IndexType {
	return IndexTypeFlat
}

// Dim returns the vector dimension.
func (f *FlatIndex) Dim() int {
	return f.dim
}

// Len returns the number of live vectors.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.slots)
}

// Add stores vector under id. An existing vector for id is tombstoned and the new one appended,
// so the replacement takes the last slot.
func (f *FlatIndex) Add(id int64, vector []float32) error {
	if id <= 0 {
		return ErrInvalidID
	}
	if len(vector) != f.dim {
		return &DimensionMismatchError{Got: len(vector), Want: f.dim}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if slot, ok := f.slots[id]; ok {
		f.ids[slot] = invalidID
		f.dead++
	}
	f.slots[id] = len(f.ids)
	f.ids = append(f.ids, id)
	f.data = append(f.data, vector...)
	f.maybeCompactLocked()
	return nil
}

// Remove tombstones the slot for id.
func (f *FlatIndex) Remove(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[id]
	if !ok {
		return false
	}
	f.ids[slot] = invalidID
	delete(f.slots, id)
	f.dead++
	f.maybeCompactLocked()
	return true
}

// Vector returns a copy of the vector stored for id.
func (f *FlatIndex) Vector(id int64) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	slot, ok := f.slots[id]
	if !ok {
		return nil, false
	}
	out := make([]float32, f.dim)
	copy(out, f.row(slot))
	return out, true
}

// IDs returns the live IDs in slot order.
func (f *FlatIndex) IDs() []int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]int64, 0, len(f.slots))
	for _, id := range f.ids {
		if id != invalidID {
			out = append(out, id)
		}
	}
	return out
}

// Search computes the squared L2 distance from query to every live vector and returns the
// k closest in ascending order. Equal distances keep slot order.
func (f *FlatIndex) Search(query []float32, k int) ([]Match, error) {
	if len(query) != f.dim {
		return nil, &DimensionMismatchError{Got: len(query), Want: f.dim}
	}
	if k < 1 {
		return nil, ErrInvalidK
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	scored := make([]Match, 0, len(f.slots))
	for slot, id := range f.ids {
		if id == invalidID {
			continue
		}
		scored = append(scored, Match{ID: id, Distance: SquaredL2(query, f.row(slot))})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Distance < scored[j].Distance })
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k:k], nil
}

// Clone returns a compacted copy that shares no memory with f.
func (f *FlatIndex) Clone() *FlatIndex {
	ids, data := f.Export()
	return newFlatIndexFrom(f.dim, ids, data)
}

// Export returns compacted copies of the live IDs and their vectors in slot order.
func (f *FlatIndex) Export() ([]int64, []float32) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]int64, 0, len(f.slots))
	data := make([]float32, 0, len(f.slots)*f.dim)
	for slot, id := range f.ids {
		if id == invalidID {
			continue
		}
		ids = append(ids, id)
		data = append(data, f.row(slot)...)
	}
	return ids, data
}

func (f *FlatIndex) row(slot int) []float32 {
	return f.data[slot*f.dim : (slot+1)*f.dim]
}

// maybeCompactLocked drops tombstones once they make up half of the slots.
func (f *FlatIndex) maybeCompactLocked() {
	if f.dead == 0 || f.dead*2 < len(f.ids) {
		return
	}
	w := 0
	for slot, id := range f.ids {
		if id == invalidID {
			continue
		}
		if w != slot {
			copy(f.data[w*f.dim:(w+1)*f.dim], f.row(slot))
			f.ids[w] = id
		}
		f.slots[id] = w
		w++
	}
	f.ids = f.ids[:w]
	f.data = f.data[:w*f.dim]
	f.dead = 0
}
