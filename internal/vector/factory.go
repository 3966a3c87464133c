package vector

import "fmt"

// IndexType names the index variant reported in store stats.
type IndexType string

const (
	// IndexTypeFlat is exhaustive squared-L2 search over every stored vector.
	IndexTypeFlat IndexType = "flat_l2"
)

// ParseIndexType validates a configured index type. An empty string selects flat.
func ParseIndexType(s string) (IndexType, error) {
	switch IndexType(s) {
	case IndexTypeFlat, "", "flat":
		return IndexTypeFlat, nil
	default:
		return "", fmt.Errorf("unknown index type: %s (supported: %s)", s, IndexTypeFlat)
	}
}
