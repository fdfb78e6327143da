// Package bootstrap assembles the API and worker object graphs from
// configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/autoquest/autoquest/internal/config"
	"github.com/autoquest/autoquest/internal/core/engine"
	"github.com/autoquest/autoquest/internal/core/ports"
	"github.com/autoquest/autoquest/internal/infrastructure/index/chroma"
	"github.com/autoquest/autoquest/internal/infrastructure/index/flat"
	"github.com/autoquest/autoquest/internal/infrastructure/index/qdrantindex"
	journalpg "github.com/autoquest/autoquest/internal/infrastructure/journal/postgres"
	"github.com/autoquest/autoquest/internal/infrastructure/llm/ollama"
	"github.com/autoquest/autoquest/internal/infrastructure/processor"
	natsbus "github.com/autoquest/autoquest/internal/infrastructure/queue/nats"
	"github.com/autoquest/autoquest/internal/infrastructure/resilience"
	"github.com/autoquest/autoquest/internal/observability/metrics"
)

const serviceAPI = "api"

// App is the wired API service.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Engine  ports.RetrievalEngine
	Asker   ports.QuestionService
	Bus     ports.EventBus
	Metrics *metrics.HTTPServerMetrics

	closeFn func()
}

func NewAPI(_ context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	httpMetrics := metrics.NewHTTPServerMetrics(serviceAPI)
	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	proc := processor.New(processor.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	}, logger)

	backend, err := vectorBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	eng := engine.New(
		proc,
		embedder,
		backend,
		flat.New(),
		engine.Options{
			DefaultTopK:      cfg.TopK,
			DefaultThreshold: cfg.SimilarityThreshold,
			HybridEnabled:    cfg.HybridEnabled,
			HybridAlpha:      cfg.HybridAlpha,
		},
		logger,
		httpMetrics.Engine(serviceAPI),
	)

	bus, err := natsbus.NewWithOptions(cfg.NATSURL, natsbus.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Engine:  eng,
		Asker:   engine.NewAnswerService(eng, generator),
		Bus:     bus,
		Metrics: httpMetrics,
		closeFn: bus.Close,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// vectorBackend builds the configured external index, or nil when the flat
// in-process index should serve directly.
func vectorBackend(cfg config.Config, logger *slog.Logger) (ports.VectorIndex, error) {
	switch cfg.VectorBackend {
	case "", flat.TypeName:
		return nil, nil
	case chroma.TypeName:
		return chroma.New(cfg.ChromaURL, cfg.ChromaCollection), nil
	case qdrantindex.TypeName:
		index, err := qdrantindex.New(qdrantindex.Config{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			UseTLS:     cfg.QdrantUseTLS,
		})
		if err != nil {
			// The engine treats a nil primary as flat-only, so a client that
			// cannot even be constructed degrades the same way a failing
			// backend would.
			logger.Error("qdrant client init failed, serving from flat index", "error", err)
			return nil, nil
		}
		return index, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// Worker is the wired journal consumer.
type Worker struct {
	Config  config.Config
	Logger  *slog.Logger
	Journal ports.Journal
	Bus     ports.EventBus
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Worker, error) {
	workerMetrics := metrics.NewWorkerMetrics("worker")
	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	db, err := journalpg.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	journal := journalpg.NewJournal(db)
	if err := journal.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	bus, err := natsbus.NewWithOptions(cfg.NATSURL, natsbus.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &Worker{
		Config:  cfg,
		Logger:  logger,
		Journal: journal,
		Bus:     bus,
		Metrics: workerMetrics,
		closeFn: func() {
			bus.Close()
			_ = db.Close()
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
