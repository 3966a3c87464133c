package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/shashin/internal/cli"
	"github.com/hyperjump/shashin/internal/config"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "/usr/local/etc/shashin/config.yaml"

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "shashin",
		Short:         "Semantic search and albums for a photo catalog",
		Long:          `Index photos by their generated tags and captions, search them by meaning and group them into albums.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	rootCmd.AddCommand(
		NewServeCmd(),
		NewSearchCmd(),
		NewSimilarCmd(),
		NewAlbumsCmd(),
		NewStatsCmd(),
		NewIngestCmd(),
		NewDeleteCmd(),
		NewWatchCmd(),
		NewReindexCmd(),
		NewVersionCmd(version),
	)
	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", defaultConfigPath, "Config file path")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// addOutputFlag registers --output on commands that print results.
func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", string(cli.OutputText), "Output format (text|json)")
}

func outputFormat(cmd *cobra.Command) (cli.OutputFormat, error) {
	s, _ := cmd.Flags().GetString("output")
	return cli.ParseOutputFormat(s)
}

// loadConfig loads config from path. When path is the default and config.yaml exists in the
// current directory, that file is used instead so "shashin serve" from a project directory
// picks up the project's config. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func configFromFlags(cmd *cobra.Command) (*config.Config, string, bool, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		return nil, "", false, fmt.Errorf("load config: %w", err)
	}
	return cfg, resolved, cfg.Debug || debug, nil
}
