package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/shashin/internal/cli"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/spf13/cobra"
)

func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search photos by meaning",
		Long: `Embed the query text and list the closest photos. Multiple arguments are joined
into one query. With --server the query is sent to a running shashin instance.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}
	cmd.Flags().IntP("number", "n", 0, "Maximum results (0 uses the configured default)")
	cmd.Flags().Bool("hybrid", false, "Blend keyword matches on tags and captions into the ranking")
	cmd.Flags().Bool("fuzzy", false, "Typo tolerant keyword matching (with --hybrid)")
	cmd.Flags().String("server", "", "Query a running server at this URL instead of the local catalog")
	addOutputFlag(cmd)
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	query := &models.SearchQuery{Query: buildSearchQuery(args)}
	query.TopK, _ = cmd.Flags().GetInt("number")
	query.Hybrid, _ = cmd.Flags().GetBool("hybrid")
	query.Fuzzy, _ = cmd.Flags().GetBool("fuzzy")
	if query.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}

	var response *models.SearchResponse
	if serverURL, _ := cmd.Flags().GetString("server"); serverURL != "" {
		response, err = searchViaHTTP(serverURL, query)
	} else {
		var c *Components
		c, err = openComponents(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		response, err = c.Engine.Search(cmd.Context(), query)
	}
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return cli.WriteSearchResults(cmd.OutOrStdout(), response, format)
}

// buildSearchQuery joins positional args into a single query string.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Post(strings.TrimSuffix(serverURL, "/")+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}
