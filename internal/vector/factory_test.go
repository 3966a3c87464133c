package vector

import "testing"

func TestParseIndexType(t *testing.T) {
	for _, s := range []string{"", "flat", "flat_l2"} {
		got, err := ParseIndexType(s)
		if err != nil {
			t.Fatalf("ParseIndexType(%q): %v", s, err)
		}
		if got != IndexTypeFlat {
			t.Errorf("ParseIndexType(%q) = %q, want %q", s, got, IndexTypeFlat)
		}
	}
}

func TestParseIndexType_Unknown(t *testing.T) {
	if _, err := ParseIndexType("hnsw"); err == nil {
		t.Error("expected error for unsupported index type")
	}
}
