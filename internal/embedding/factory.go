package embedding

import (
	"os"

	"go.uber.org/zap"
)

// Options selects and sizes the embedder built by New.
type Options struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	CacheSize  int
}

// New returns the ONNX embedder when a model file is configured and loads, otherwise the
// hashing embedder. A positive CacheSize wraps the result in a CachedEmbedder.
func New(opts Options, logger *zap.Logger) Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	var emb Embedder = NewHashEmbedder(opts.Dimensions)
	if opts.ModelPath != "" {
		if _, err := os.Stat(opts.ModelPath); err != nil {
			logger.Warn("embedding model not found, using hash embedder",
				zap.String("model_path", opts.ModelPath), zap.Error(err))
		} else if onnx, err := NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens); err != nil {
			logger.Warn("ONNX embedder unavailable, using hash embedder", zap.Error(err))
		} else {
			logger.Info("ONNX embedder loaded", zap.String("model_path", opts.ModelPath))
			emb = onnx
		}
	}
	if opts.CacheSize > 0 {
		emb = NewCachedEmbedder(emb, opts.CacheSize)
	}
	return emb
}
