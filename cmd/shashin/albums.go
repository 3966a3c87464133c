package main

import (
	"fmt"

	"github.com/hyperjump/shashin/internal/cli"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/spf13/cobra"
)

func NewAlbumsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "albums",
		Short: "Group the catalog into albums",
		Long: `Cluster photo embeddings into albums. The greedy strategy grows albums around
random seed photos within a distance threshold; kmeans partitions every photo.
Unset flags use the album section of the config.`,
		Args: cobra.NoArgs,
		RunE: runAlbums,
	}
	cmd.Flags().String("strategy", "", "Clustering strategy (greedy|kmeans)")
	cmd.Flags().IntP("number", "n", 0, "Maximum number of albums")
	cmd.Flags().Int("size", 0, "Maximum photos per album (greedy)")
	cmd.Flags().Float32("threshold", 0, "Maximum squared distance from the seed photo (greedy)")
	cmd.Flags().Int64("seed", 0, "Random seed for reproducible albums")
	addOutputFlag(cmd)
	return cmd
}

func runAlbums(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	query := &models.AlbumQuery{}
	query.Strategy, _ = cmd.Flags().GetString("strategy")
	query.TopK, _ = cmd.Flags().GetInt("number")
	query.AlbumSize, _ = cmd.Flags().GetInt("size")
	if cmd.Flags().Changed("threshold") {
		threshold, _ := cmd.Flags().GetFloat32("threshold")
		query.DistanceThreshold = &threshold
	}
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetInt64("seed")
		query.Seed = &seed
	}

	c, err := openComponents(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	response, err := c.Engine.Albums(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("albums: %w", err)
	}
	return cli.WriteAlbums(cmd.OutOrStdout(), response, format)
}
