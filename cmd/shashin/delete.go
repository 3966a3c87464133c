package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func NewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <photo-id>",
		Short: "Remove a photo, its embedding and its keyword entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid photo id %q", args[0])
			}
			c, err := openComponents(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Ingester.DeletePhoto(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Photo deleted: %d\n", id)
			return nil
		},
	}
}
