// Package fileid names uploaded photo files and fingerprints their content.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// stampLayout renders as YYYYMMDD_HHMMSS_mmm.
const stampLayout = "20060102_150405.000"

// UploadName returns the stored filename for an upload: the original base name with a UTC
// timestamp inserted before the extension, e.g. "tiger.jpg" -> "tiger_20251024_064435_667.jpg".
// Directory components of original are discarded.
func UploadName(original string, now time.Time) string {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(original, "\\", "/")))
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" || name == "." || name == "/" {
		name = "photo"
	}
	stamp := strings.Replace(now.UTC().Format(stampLayout), ".", "_", 1)
	return name + "_" + stamp + strings.ToLower(ext)
}

// UniqueUploadName returns UploadName unless a file of that name already exists in dir, in
// which case a short random suffix is added.
func UniqueUploadName(dir, original string, now time.Time) string {
	name := UploadName(original, now)
	if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + uuid.NewString()[:8] + ext
}

// Checksum returns the hex SHA-256 of content.
func Checksum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// FileChecksum returns the hex SHA-256 of the file at path.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
