package fileid

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var at = time.Date(2025, 10, 24, 6, 44, 35, 667_000_000, time.UTC)

func TestUploadName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tiger.jpg", "tiger_20251024_064435_667.jpg"},
		{"Beach.JPEG", "Beach_20251024_064435_667.jpeg"},
		{"../../etc/passwd.png", "passwd_20251024_064435_667.png"},
		{`C:\photos\cat.webp`, "cat_20251024_064435_667.webp"},
		{".png", "photo_20251024_064435_667.png"},
	}
	for _, tt := range tests {
		if got := UploadName(tt.in, at); got != tt.want {
			t.Errorf("UploadName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUploadName_localTimeIsUTC(t *testing.T) {
	local := at.In(time.FixedZone("X", 3*3600))
	if got := UploadName("a.gif", local); got != "a_20251024_064435_667.gif" {
		t.Errorf("got %q", got)
	}
}

func TestUniqueUploadName(t *testing.T) {
	dir := t.TempDir()
	first := UniqueUploadName(dir, "tiger.jpg", at)
	if first != "tiger_20251024_064435_667.jpg" {
		t.Fatalf("got %q", first)
	}
	if err := os.WriteFile(filepath.Join(dir, first), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	second := UniqueUploadName(dir, "tiger.jpg", at)
	if second == first || !strings.HasPrefix(second, "tiger_20251024_064435_667_") || !strings.HasSuffix(second, ".jpg") {
		t.Errorf("collision not resolved: %q", second)
	}
}

func TestChecksum(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Checksum([]byte("abc")); got != want {
		t.Errorf("Checksum = %s", got)
	}
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := FileChecksum(path)
	if err != nil || got != want {
		t.Errorf("FileChecksum = %s, %v", got, err)
	}
	if _, err := FileChecksum(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
