package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/shashin/internal/models"
)

// Indexed fields. Filenames are indexed with underscores and dashes turned into spaces.
const (
	fieldTags        = "tags"
	fieldCaption     = "caption"
	fieldDescription = "description"
	fieldFilename    = "filename"
)

var textFields = []string{fieldCaption, fieldDescription, fieldFilename}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func photoMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "tigers" in a query does not
	// silently match "tiger" tags while "golden" still matches "Golden".
	textFieldMapping.Analyzer = standard.Name
	for _, f := range append([]string{fieldTags}, textFields...) {
		docMapping.AddFieldMappingsAt(f, textFieldMapping)
	}
	im.AddDocumentMapping("photo", docMapping)
	im.DefaultType = "photo"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is reused; the
// ingest pipeline re-indexes photos on reindex, so removing the directory is safe.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create Bleve index directory: %w", err)
	}
	index, err := bleve.New(path, photoMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryIndex creates an in-memory Bleve index.
func NewMemoryIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(photoMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Index indexes or replaces the photo's keyword document.
func (b *BleveIndex) Index(ctx context.Context, photo *models.Photo) error {
	doc := map[string]interface{}{
		fieldTags:        strings.Join(photo.Tags, " "),
		fieldCaption:     photo.Caption,
		fieldDescription: photo.Description,
		fieldFilename:    normalizeFilename(photo.Filename),
	}
	return b.index.Index(docID(photo.ID), doc)
}

// normalizeFilename replaces separators with spaces and drops the extension so the standard
// analyzer splits "golden_retriever-park.jpg" into searchable words.
func normalizeFilename(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name)
}

// Search returns up to limit photos matching query, best first. Tag and text field scores
// are added, with the tag score multiplied by opts.TagBoost. Multi-term queries penalize
// photos that match only some terms.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	tagBoost := 2.0
	fuzzy := false
	fuzziness := 1
	if opts != nil {
		if opts.TagBoost > 0 {
			tagBoost = opts.TagBoost
		}
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}
	terms := tokenizeQuery(query)
	if len(terms) == 0 || limit <= 0 {
		return []*KeywordResult{}, nil
	}

	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	tagHits, err := b.searchFields(ctx, b.buildQuery(terms, fuzzy, fuzziness, fieldTags), reqSize)
	if err != nil {
		return nil, fmt.Errorf("Bleve tag search failed: %w", err)
	}
	textHits, err := b.searchFields(ctx, b.buildQuery(terms, fuzzy, fuzziness, textFields...), reqSize)
	if err != nil {
		return nil, fmt.Errorf("Bleve text search failed: %w", err)
	}

	coverage := map[string]int{}
	if len(terms) > 1 {
		coverage, err = b.termCoverage(ctx, terms, reqSize, fuzzy, fuzziness)
		if err != nil {
			return nil, err
		}
	}

	scores := make(map[string]float64, len(tagHits)+len(textHits))
	for id, s := range tagHits {
		scores[id] += s * tagBoost
	}
	for id, s := range textHits {
		scores[id] += s
	}
	if len(terms) > 1 {
		for id := range scores {
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			scores[id] *= c * c
		}
	}

	out := make([]*KeywordResult, 0, len(scores))
	for id, score := range scores {
		photoID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, &KeywordResult{PhotoID: photoID, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PhotoID < out[j].PhotoID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *BleveIndex) searchFields(ctx context.Context, q blevequery.Query, size int) (map[string]float64, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	hits := make(map[string]float64, len(res.Hits))
	for _, hit := range res.Hits {
		hits[hit.ID] = hit.Score
	}
	return hits, nil
}

// buildQuery returns a disjunction of one match (or fuzzy) query per term and field.
func (b *BleveIndex) buildQuery(terms []string, fuzzy bool, fuzziness int, fields ...string) blevequery.Query {
	queries := make([]blevequery.Query, 0, len(terms)*len(fields))
	for _, field := range fields {
		for _, term := range terms {
			if fuzzy {
				fq := bleve.NewFuzzyQuery(term)
				fq.SetFuzziness(fuzziness)
				fq.SetField(field)
				queries = append(queries, fq)
				continue
			}
			mq := bleve.NewMatchQuery(term)
			mq.SetField(field)
			queries = append(queries, mq)
		}
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// termCoverage counts how many distinct query terms each photo matches in any field.
func (b *BleveIndex) termCoverage(ctx context.Context, terms []string, size int, fuzzy bool, fuzziness int) (map[string]int, error) {
	allFields := append([]string{fieldTags}, textFields...)
	coverage := make(map[string]int)
	for _, term := range terms {
		hits, err := b.searchFields(ctx, b.buildQuery([]string{term}, fuzzy, fuzziness, allFields...), size)
		if err != nil {
			return nil, fmt.Errorf("Bleve term search failed: %w", err)
		}
		for id := range hits {
			coverage[id]++
		}
	}
	return coverage, nil
}

// tokenizeQuery splits query into lowercase terms on anything that is not a letter or digit.
func tokenizeQuery(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range strings.FieldsFunc(strings.ToLower(query), isSeparator) {
		if !seen[w] {
			seen[w] = true
			terms = append(terms, w)
		}
	}
	return terms
}

func isSeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
}

// Delete removes a photo from the index.
func (b *BleveIndex) Delete(ctx context.Context, id int64) error {
	return b.index.Delete(docID(id))
}

// DocCount returns the total number of photos in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
