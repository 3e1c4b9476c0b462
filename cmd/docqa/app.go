package main

import (
	"context"
	"fmt"
	"time"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/errs"
	"docqa/internal/extractor"
	"docqa/internal/llm/openai"
	"docqa/internal/logger"
	"docqa/internal/service"
	"docqa/internal/summarizer"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
	"docqa/internal/vectorstore/pinecone"
	"docqa/internal/vectorstore/qdrant"
)

type app struct {
	cfg      *config.AppConfig
	log      *logger.Logger
	pipeline *service.Pipeline
}

func (a *app) close() {
	if a != nil && a.log != nil {
		a.log.Sync()
	}
}

// newApp wires config, logger, clients, store and pipeline. logOutput
// overrides the configured log destination when non-empty.
func newApp(ctx context.Context, cfgPath, logOutput string) (*app, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	var (
		cfg  *config.AppConfig
		path = cfgPath
		err  error
	)
	if cfgPath == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}

	output := cfg.Log.Output
	if logOutput != "" {
		output = logOutput
	}
	log, err := logger.New(cfg.Log.Mode, output)
	if err != nil {
		return nil, errs.E(errs.Configuration, "logger.New", err)
	}
	log.Debug("config loaded", "path", path, "vector_store", cfg.VectorStore.Type, "index", cfg.VectorStore.Index)

	ch, err := chunker.NewWordChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}

	llm, err := openai.NewClient(log, openai.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		ChatModel:      cfg.OpenAI.ChatModel,
		Temperature:    cfg.OpenAI.Temperature,
		Timeout:        seconds(cfg.OpenAI.TimeoutSecs),
	})
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(log, cfg)
	if err != nil {
		return nil, err
	}
	index, err := provider.EnsureIndex(ctx, vectorstore.IndexSpec{
		Name:      cfg.VectorStore.Index,
		Dimension: cfg.VectorStore.Dimension,
		Metric:    cfg.VectorStore.Metric,
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := service.NewPipeline(service.Deps{
		Log:              log,
		Extractor:        extractor.NewPDFExtractor(log),
		Chunker:          ch,
		Embedder:         llm,
		Completer:        llm,
		Index:            index,
		Summarizer:       summarizer.NewFrequencySummarizer(),
		BatchSize:        cfg.VectorStore.UpsertBatchSize,
		SummarySentences: cfg.Query.SummarySentences,
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, pipeline: pipeline}, nil
}

func newProvider(log *logger.Logger, cfg *config.AppConfig) (vectorstore.Provider, error) {
	vs := cfg.VectorStore
	switch vs.Type {
	case "pinecone":
		pc, err := pinecone.NewClient(log, pinecone.Config{
			APIKey:       vs.Pinecone.APIKey,
			APIVersion:   vs.Pinecone.APIVersion,
			BaseURL:      vs.Pinecone.BaseURL,
			Cloud:        vs.Pinecone.Cloud,
			Region:       vs.Pinecone.Region,
			Timeout:      seconds(vs.Pinecone.TimeoutSecs),
			ReadyTimeout: seconds(vs.Pinecone.ReadyTimeoutSecs),
		})
		if err != nil {
			return nil, err
		}
		return pinecone.NewProvider(log, pc), nil
	case "qdrant":
		return qdrant.NewProvider(log, qdrant.Config{
			URL:     vs.Qdrant.URL,
			APIKey:  vs.Qdrant.APIKey,
			Timeout: seconds(vs.Qdrant.TimeoutSecs),
		}), nil
	case "memory":
		log.Warn("memory vector store selected; data is lost when the process exits")
		return memory.NewProvider(), nil
	}
	return nil, errs.E(errs.Configuration, "newProvider", fmt.Errorf("unknown vector store: %s", vs.Type))
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
