package main

import (
	"fmt"
	"strconv"

	"github.com/hyperjump/shashin/internal/cli"
	"github.com/spf13/cobra"
)

func NewSimilarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <photo-id>",
		Short: "List photos that look like a given photo",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimilar,
	}
	cmd.Flags().IntP("number", "n", 0, "Maximum results (0 uses the default)")
	addOutputFlag(cmd)
	return cmd
}

func runSimilar(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid photo id %q", args[0])
	}
	topK, _ := cmd.Flags().GetInt("number")

	c, err := openComponents(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	response, err := c.Engine.Similar(cmd.Context(), id, topK)
	if err != nil {
		return fmt.Errorf("similar: %w", err)
	}
	return cli.WriteSearchResults(cmd.OutOrStdout(), response, format)
}
