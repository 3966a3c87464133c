// Package describe provides tags, captions and descriptions for photos.
//
// Vision models run outside this service; their output arrives as a sidecar file next to
// the image, named after the image with a .yaml, .yml or .json extension added to or
// replacing the image extension. Photos without a sidecar are described from their filename.
package describe

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// SidecarExtensions are tried in order when looking for a description file.
var SidecarExtensions = []string{".yaml", ".yml", ".json"}

// MaxTags bounds the number of tags kept per photo.
const MaxTags = 20

// Description is the generated metadata of one photo.
type Description struct {
	Tags        []string `yaml:"tags" json:"tags"`
	Caption     string   `yaml:"caption" json:"caption"`
	Description string   `yaml:"description" json:"description"`
}

// Describer produces descriptions for image files.
type Describer struct{}

// NewDescriber returns a new Describer.
func NewDescriber() *Describer {
	return &Describer{}
}

// Describe returns the description of the image at path. The first sidecar found wins;
// a sidecar that cannot be parsed is an error. Without a sidecar the filename is used.
func (d *Describer) Describe(path string) (*Description, error) {
	for _, candidate := range SidecarPaths(path) {
		content, err := os.ReadFile(candidate)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read sidecar: %w", err)
		}
		desc, err := d.DescribeBytes(content, strings.ToLower(filepath.Ext(candidate)))
		if err != nil {
			return nil, fmt.Errorf("sidecar %s: %w", filepath.Base(candidate), err)
		}
		if len(desc.Tags) == 0 && desc.Caption == "" {
			fallback := FromFilename(filepath.Base(path))
			desc.Tags = fallback.Tags
			if desc.Caption == "" {
				desc.Caption = fallback.Caption
			}
		}
		return desc, nil
	}
	return FromFilename(filepath.Base(path)), nil
}

// DescribeBytes parses sidecar content based on the given extension.
// ext should include the leading dot (e.g. ".yaml").
func (d *Describer) DescribeBytes(content []byte, ext string) (*Description, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	var desc Description
	switch ext {
	case ".json":
		if err := json.Unmarshal(content, &desc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(content, &desc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported sidecar extension %q", ext)
	}
	desc.normalize()
	return &desc, nil
}

// SidecarPaths lists the sidecar locations checked for the image at path, in order:
// photo.jpg.yaml, photo.yaml, photo.jpg.yml, photo.yml, photo.jpg.json, photo.json.
func SidecarPaths(path string) []string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	paths := make([]string, 0, 2*len(SidecarExtensions))
	for _, ext := range SidecarExtensions {
		paths = append(paths, path+ext)
		if stem != path {
			paths = append(paths, stem+ext)
		}
	}
	return paths
}

// IsSidecar reports whether path names a description sidecar rather than an image.
func IsSidecar(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SidecarExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (d *Description) normalize() {
	d.Caption = strings.TrimSpace(d.Caption)
	d.Description = strings.TrimSpace(d.Description)
	d.Tags = cleanTags(d.Tags)
}

// cleanTags lowercases and trims tags, dropping empties and duplicates while keeping order.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}
