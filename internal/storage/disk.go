package storage

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// DatabaseFiles lists the files SQLite keeps for the database at dbPath in WAL mode.
func DatabaseFiles(dbPath string) []string {
	if dbPath == "" || dbPath == ":memory:" {
		return nil
	}
	return []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
}

// DiskUsageBytes returns the size in bytes of the regular files under paths. A path may be a
// file or a directory. Missing paths count as zero, and a file reachable through more than one
// path (an upload dir nested in the data dir, say) is counted once.
func DiskUsageBytes(paths ...string) (int64, error) {
	seen := make(map[string]bool)
	var total int64
	for _, root := range paths {
		if root == "" {
			continue
		}
		err := filepath.WalkDir(filepath.Clean(root), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == filepath.Clean(root) && errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if !d.Type().IsRegular() || seen[path] {
				return nil
			}
			seen[path] = true
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
