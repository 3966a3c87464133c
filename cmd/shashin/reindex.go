package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Re-embed every photo and rebuild the vector store",
		Long: `Recompute embeddings for all photos from their stored tags and captions, for
example after changing the embedding model, and replace the vector store in one write.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openComponents(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			start := time.Now()
			n, err := c.Ingester.Reindex(cmd.Context())
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Re-embedded %d photo(s) in %s\n", n, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
