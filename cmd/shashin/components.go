package main

import (
	"fmt"

	"github.com/hyperjump/shashin/internal/config"
	"github.com/hyperjump/shashin/internal/embedding"
	"github.com/hyperjump/shashin/internal/ingest"
	"github.com/hyperjump/shashin/internal/keyword"
	"github.com/hyperjump/shashin/internal/search"
	"github.com/hyperjump/shashin/internal/storage"
	"github.com/hyperjump/shashin/internal/vector"
	"github.com/hyperjump/shashin/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Config       *config.Config
	ConfigPath   string
	Logger       *zap.Logger
	Storage      storage.Storage
	Embedder     embedding.Embedder
	Vectors      *vector.Store
	KeywordIndex keyword.KeywordIndex
	Engine       *search.Engine
	Ingester     *ingest.Ingester
}

func (c *Components) Close() {
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

// openComponents loads the config named by the command flags and builds every service.
func openComponents(cmd *cobra.Command) (*Components, error) {
	cfg, resolved, debug, err := configFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))

	c, err := initializeComponents(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	c.ConfigPath = resolved
	return c, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg, Logger: logger}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	c.Embedder = embedding.New(embedding.Options{
		ModelPath:  cfg.Embedding.ModelPath,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
	}, logger)

	indexType, err := vector.ParseIndexType(cfg.Vector.IndexType)
	if err != nil {
		c.Close()
		return nil, err
	}
	vectors, err := vector.Open(cfg.Storage.VectorIndexPath, c.Embedder.Dimensions(),
		vector.WithLogger(logger),
		vector.WithNormalize(cfg.Vector.NormalizeOrDefault()),
		vector.WithCompression(cfg.Vector.Compression),
		vector.WithIndexType(indexType),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	c.Vectors = vectors

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = keywordIndex

	c.Engine = search.NewEngine(store, c.Embedder, vectors, cfg,
		search.WithLogger(logger),
		search.WithKeywordIndex(keywordIndex),
	)
	c.Ingester = ingest.NewIngester(store, c.Embedder, vectors, cfg.Storage.UploadDir,
		ingest.WithLogger(logger),
		ingest.WithKeywordIndex(keywordIndex),
		ingest.WithExtensions(cfg.Watch.Extensions),
	)
	return c, nil
}
