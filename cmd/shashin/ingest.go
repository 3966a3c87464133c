package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Add image files or directories to the catalog",
		Long: `Describe, embed and index images. Directories are walked recursively; files
with unsupported extensions are skipped. Images already in the catalog are
refreshed from their description sidecar.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	c, err := openComponents(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	total := 0
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			n, err := c.Ingester.IngestDirectory(cmd.Context(), path)
			total += n
			if err != nil {
				return fmt.Errorf("ingest %s: %w", path, err)
			}
			continue
		}
		photo, err := c.Ingester.IngestFile(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		fmt.Fprintf(out, "%d  %s\n", photo.ID, photo.Filename)
		total++
	}
	fmt.Fprintf(out, "Ingested %d photo(s)\n", total)
	return nil
}
