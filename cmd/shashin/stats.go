package main

import (
	"fmt"

	"github.com/hyperjump/shashin/internal/cli"
	"github.com/spf13/cobra"
)

func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog and vector store statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
	addOutputFlag(cmd)
	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	c, err := openComponents(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	stats, err := c.Engine.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	return cli.WriteStats(cmd.OutOrStdout(), stats, format)
}
