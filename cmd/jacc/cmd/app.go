package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/jacc-ai/jacc-core/internal/cache"
	"github.com/jacc-ai/jacc-core/internal/chunk"
	"github.com/jacc-ai/jacc-core/internal/config"
	"github.com/jacc-ai/jacc-core/internal/ingest"
	"github.com/jacc-ai/jacc-core/internal/logging"
	"github.com/jacc-ai/jacc-core/internal/orchestrator"
	"github.com/jacc-ai/jacc-core/internal/provider"
	"github.com/jacc-ai/jacc-core/internal/search"
	"github.com/jacc-ai/jacc-core/internal/store"
	"github.com/jacc-ai/jacc-core/internal/telemetry"
)

const vectorIndexFile = "vectors.idx"

// app wires the full retrieval stack for CLI commands. Everything is
// constructed explicitly here so the core never reaches for globals.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	chunks   store.ChunkStore
	vectors  *store.HNSWStore
	client   *provider.OpenAIClient
	embedder provider.Embedder

	ingestor     *ingest.Ingestor
	orchestrator *orchestrator.Orchestrator

	cleanups []func()
}

func newApp(cfgPath string) (*app, error) {
	// A .env in the working directory is a convenience for API keys;
	// its absence is normal.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{
		Level:     cfg.LogLevel,
		FilePath:  cfg.Paths.LogFile,
		MaxSizeMB: 10,
		MaxFiles:  5,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("logging setup: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	a.cleanups = append(a.cleanups, logCleanup)

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		a.Close()
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	chunks, err := store.NewSQLiteChunkStore(filepath.Join(cfg.Paths.DataDir, "chunks.db"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open chunk store: %w", err)
	}
	a.chunks = chunks
	a.cleanups = append(a.cleanups, func() { _ = chunks.Close() })

	vectors, err := store.NewHNSWStore(store.VectorStoreConfig{
		Dimensions: cfg.Vector.Dimensions,
		Metric:     cfg.Vector.Metric,
		M:          cfg.Vector.M,
		EfSearch:   cfg.Vector.EfSearch,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	a.vectors = vectors
	a.cleanups = append(a.cleanups, func() { _ = vectors.Close() })

	indexPath := a.vectorIndexPath()
	if _, err := os.Stat(indexPath); err == nil {
		if err := vectors.Load(indexPath); err != nil {
			a.Close()
			return nil, fmt.Errorf("load vector index: %w", err)
		}
	}

	a.client = provider.NewOpenAIClient(provider.OpenAIConfig{
		BaseURL:        cfg.Provider.BaseURL,
		APIKey:         cfg.Provider.APIKey,
		ChatModel:      cfg.Provider.ChatModel,
		EmbeddingModel: cfg.Provider.EmbeddingModel,
		Dimensions:     cfg.Vector.Dimensions,
		Timeout:        cfg.Provider.RequestTimeout,
		MaxRetries:     cfg.Provider.MaxRetries,
	}, logger)
	a.cleanups = append(a.cleanups, func() { _ = a.client.Close() })
	a.embedder = provider.NewCachedEmbedder(a.client, cfg.Provider.EmbedCacheSize)

	chunker := chunk.NewSentenceChunker(cfg.Ingest.ChunkSize)
	a.ingestor, err = ingest.New(chunker, a.chunks, a.vectors, a.embedder, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	orch, err := a.buildOrchestrator()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orchestrator = orch
	return a, nil
}

func (a *app) buildOrchestrator() (*orchestrator.Orchestrator, error) {
	completer := provider.NewGuardedCompleter(a.client, nil)

	keyword, err := search.NewKeywordEngine(a.chunks, search.KeywordConfig{
		ExactScore:        a.cfg.Search.ExactScore,
		ExpandedScore:     a.cfg.Search.ExpandedScore,
		PartialScore:      a.cfg.Search.PartialScore,
		ExactThreshold:    a.cfg.Search.ExactThreshold,
		ExpandedThreshold: a.cfg.Search.ExpandedThreshold,
		MaxResults:        a.cfg.Search.MaxResults,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	vector, err := search.NewVectorEngine(a.embedder, a.vectors, a.chunks, a.logger)
	if err != nil {
		return nil, err
	}

	enhancer := search.NewQueryEnhancer(completer, search.DefaultEnhancerCacheSize, a.logger)

	aiCfg := search.DefaultAIEnhancedConfig()
	aiCfg.EnrichTopN = a.cfg.Search.EnrichTopN
	aiEnhanced, err := search.NewAIEnhancedEngine(enhancer, vector, completer, aiCfg, a.logger)
	if err != nil {
		return nil, err
	}

	synthesizer, err := orchestrator.NewSynthesizer(completer, a.logger)
	if err != nil {
		return nil, err
	}

	responses := cache.New(a.cfg.Cache.MaxEntries, a.cfg.Cache.MaxBytes, a.cfg.Cache.TTL)

	return orchestrator.New(keyword, vector, aiEnhanced, enhancer, synthesizer,
		orchestrator.WithResponseCache(responses),
		orchestrator.WithMetrics(telemetry.NewAgentMetrics(telemetry.DefaultSampleWindow)),
		orchestrator.WithTaskTimeouts(orchestrator.TaskTimeouts{
			Vector:     a.cfg.Tasks.VectorTimeout,
			Keyword:    a.cfg.Tasks.KeywordTimeout,
			AIEnhanced: a.cfg.Tasks.AIEnhancedTimeout,
			Expansion:  a.cfg.Tasks.ExpansionTimeout,
		}),
		orchestrator.WithLogger(a.logger),
	)
}

func (a *app) vectorIndexPath() string {
	return filepath.Join(a.cfg.Paths.DataDir, vectorIndexFile)
}

// saveVectors persists the HNSW index after ingest mutations.
func (a *app) saveVectors() error {
	return a.vectors.Save(a.vectorIndexPath())
}

// Close releases everything in reverse construction order.
func (a *app) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}
