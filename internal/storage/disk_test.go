package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "photos.db")
	uploads := filepath.Join(dir, "uploads")
	if err := os.Mkdir(uploads, 0755); err != nil {
		t.Fatal(err)
	}
	files := []struct {
		path, content string
	}{
		{db, "hello"},
		{filepath.Join(uploads, "cat.jpg"), "ab"},
		{filepath.Join(uploads, "dog.png"), "c"},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, []byte(f.content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{db}, 5},
		{"directory", []string{uploads}, 3},
		{"file and directory", []string{db, uploads}, 8},
		{"missing path skipped", []string{db, filepath.Join(dir, "photos.idx"), uploads}, 8},
		{"empty path skipped", []string{"", db}, 5},
		{"overlap counted once", []string{dir, uploads, db}, 8},
		{"wal files missing", DatabaseFiles(db), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DiskUsageBytes(%v) = %d, want %d", tt.paths, got, tt.want)
			}
		})
	}
}

func TestDatabaseFiles(t *testing.T) {
	if got := DatabaseFiles(":memory:"); got != nil {
		t.Errorf("in-memory database has files: %v", got)
	}
	want := []string{"/data/photos.db", "/data/photos.db-wal", "/data/photos.db-shm"}
	if got := DatabaseFiles("/data/photos.db"); !reflect.DeepEqual(got, want) {
		t.Errorf("DatabaseFiles() = %v, want %v", got, want)
	}
}
