package main

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/hyperjump/shashin/internal/config"
	"github.com/spf13/cobra"
)

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the directories watched by serve",
		Long: `Add, remove or list the inbox directories in the config file. A running server
picks up changes on restart.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List watched directories",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, _, err := configFromFlags(cmd)
				if err != nil {
					return err
				}
				for _, d := range cfg.Watch.Directories {
					fmt.Fprintln(cmd.OutOrStdout(), d)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <dir>",
			Short: "Watch a directory",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return updateWatchDirs(cmd, args[0], true)
			},
		},
		&cobra.Command{
			Use:   "remove <dir>",
			Short: "Stop watching a directory",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return updateWatchDirs(cmd, args[0], false)
			},
		},
	)
	return cmd
}

func updateWatchDirs(cmd *cobra.Command, dir string, add bool) error {
	cfg, resolved, _, err := configFromFlags(cmd)
	if err != nil {
		return err
	}
	path, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	present := slices.Contains(cfg.Watch.Directories, path)
	switch {
	case add && present:
		fmt.Fprintf(out, "Already watched: %s\n", path)
		return nil
	case add:
		cfg.Watch.Directories = append(cfg.Watch.Directories, path)
	case !present:
		return fmt.Errorf("not watched: %s", path)
	default:
		cfg.Watch.Directories = slices.DeleteFunc(cfg.Watch.Directories, func(d string) bool { return d == path })
	}
	if err := config.Save(resolved, cfg); err != nil {
		return err
	}
	if add {
		fmt.Fprintf(out, "Added: %s\n", path)
	} else {
		fmt.Fprintf(out, "Removed: %s\n", path)
	}
	return nil
}
