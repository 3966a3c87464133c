// Package vector provides the photo embedding store: a flat squared-L2 index keyed by photo ID,
// persisted as an index file plus an ID sidecar.
package vector

// invalidID marks a tombstoned slot. It is never returned from a search.
const invalidID int64 = -1

// Index is an in-memory vector index keyed by photo ID.
type Index interface {
	// Add stores vector under id, replacing any vector already stored for id.
	Add(id int64, vector []float32) error
	// Remove drops the vector stored for id. It reports whether id was present.
	Remove(id int64) bool
	// Search returns up to k matches ordered by ascending squared L2 distance.
	Search(query []float32, k int) ([]Match, error)
	// Vector returns a copy of the vector stored for id.
	Vector(id int64) ([]float32, bool)
	// IDs returns the stored IDs in slot order.
	IDs() []int64
	Len() int
	Dim() int
	Type() IndexType
}

// Match is a single neighbor search hit.
type Match struct {
	ID       int64   `json:"photo_id"`
	Distance float32 `json:"distance"` // squared L2, lower is closer
}
