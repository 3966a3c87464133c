package describe

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// uploadSuffix matches the _YYYYMMDD_HHMMSS_mmm stamp appended to uploaded filenames.
var uploadSuffix = regexp.MustCompile(`_\d{8}_\d{6}_\d{3}$`)

// FromFilename derives tags and a caption from the words of a filename, ignoring the
// extension, the upload timestamp and purely numeric parts.
func FromFilename(name string) *Description {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = uploadSuffix.ReplaceAllString(stem, "")
	words := strings.FieldsFunc(strings.ToLower(stem), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tags []string
	for _, w := range words {
		if strings.IndexFunc(w, unicode.IsLetter) < 0 {
			continue
		}
		tags = append(tags, w)
	}
	tags = cleanTags(tags)

	caption := "A photo"
	if len(tags) > 0 {
		caption = "A photo of " + strings.Join(tags, " ")
	}
	return &Description{Tags: tags, Caption: caption}
}
