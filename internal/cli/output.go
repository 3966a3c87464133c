// Package cli renders command output for the shashin CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const captionWidth = 80

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (use text or json)", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
// Unknown formats are written as text.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d photos for %q in %dms\n\n", response.TotalResults, response.Query, response.QueryTime)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
	return nil
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Distance: %.4f", result.Rank, result.Distance)
	if result.KeywordScore > 0 {
		fmt.Fprintf(w, " | Score: %.4f (Keyword: %.4f)", result.Score, result.KeywordScore)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "ID: %d  %s\n", result.PhotoID, result.Filename)
	if len(result.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %s\n", strings.Join(result.Tags, ", "))
	}
	if result.Caption != "" {
		fmt.Fprintf(w, "%s\n", utils.Truncate(result.Caption, captionWidth))
	}
	fmt.Fprintln(w)
}

// WriteAlbums writes albums to w in the given format.
func WriteAlbums(w io.Writer, response *models.AlbumsResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\n%d albums (%s)\n", len(response.Albums), response.Strategy)
	for i, album := range response.Albums {
		fmt.Fprintf(w, "\n=== Album %d: %s ===\n", i+1, album.Summary)
		for _, p := range album.Photos {
			fmt.Fprintf(w, "  %6d  %.4f  %s\n", p.PhotoID, p.Distance, p.Filename)
		}
	}
	return nil
}

// WriteStats writes catalog statistics to w in the given format.
func WriteStats(w io.Writer, stats *models.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Photos:      %d\n", stats.TotalPhotos)
	fmt.Fprintf(w, "Embeddings:  %d\n", stats.TotalEmbeddings)
	fmt.Fprintf(w, "Dimension:   %d\n", stats.Dimension)
	fmt.Fprintf(w, "Index type:  %s\n", stats.IndexType)
	fmt.Fprintf(w, "Disk usage:  %s\n", HumanBytes(stats.DiskUsageBytes))
	return nil
}

// HumanBytes formats a byte count with a binary unit, e.g. 1536 -> "1.5 KiB".
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
