// Package app builds the collaborators shared by the Lambda and CLI entry
// points from a config.Config.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"hint-agent/internal/cache"
	"hint-agent/internal/config"
	"hint-agent/internal/integrations/anthropic"
	"hint-agent/internal/integrations/bleveindex"
	"hint-agent/internal/integrations/gemini"
	"hint-agent/internal/integrations/openai"
	"hint-agent/internal/integrations/paramstore"
	"hint-agent/internal/integrations/retrievalapi"
	"hint-agent/internal/usecase"
)

// NewGenerator returns the generation client for cfg.Provider.
func NewGenerator(cfg config.Config, key paramstore.KeyFunc) (usecase.Generator, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		var opts []openai.Option
		if cfg.ProviderBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.ProviderBaseURL))
		}
		return openai.NewClient(key, opts...)
	case config.ProviderAnthropic:
		var opts []anthropic.Option
		if cfg.ProviderBaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.ProviderBaseURL))
		}
		return anthropic.NewClient(key, opts...)
	case config.ProviderGemini:
		var opts []gemini.Option
		if cfg.ProviderBaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.ProviderBaseURL))
		}
		return gemini.NewClient(key, opts...)
	}
	return nil, fmt.Errorf("app: unknown provider %q", cfg.Provider)
}

// NewRetriever prefers the remote retrieval service and falls back to a local
// chunk file. Either way results go through the retrieval cache. The returned
// func logs the cache totals and releases the local index.
func NewRetriever(cfg config.Config, logger *zap.Logger) (usecase.Retriever, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }
	var (
		next      cache.Retriever
		closeNext = noop
	)
	switch {
	case cfg.RetrievalURL != "":
		var opts []retrievalapi.Option
		if cfg.RetrievalAPIKey != "" {
			opts = append(opts, retrievalapi.WithAPIKey(cfg.RetrievalAPIKey))
		}
		client, err := retrievalapi.NewClient(cfg.RetrievalURL, opts...)
		if err != nil {
			return nil, noop, err
		}
		next = client
	case cfg.ChunksFile != "":
		idx, err := bleveindex.LoadFile(cfg.ChunksFile)
		if err != nil {
			return nil, noop, err
		}
		next, closeNext = idx, idx.Close
	default:
		return nil, noop, fmt.Errorf("app: set retrieval_url or chunks_file")
	}

	cached := cache.NewRetrieval(next, cfg.CacheSize, cfg.CacheTTL, cache.WithLogger(logger.Named("cache")))
	return cached, func() error {
		cached.LogStats()
		return closeNext()
	}, nil
}
