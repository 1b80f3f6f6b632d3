package brief

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/eventbrief/engine/extract"
	"github.com/WessleyAI/eventbrief/engine/fill"
	"github.com/WessleyAI/eventbrief/engine/history"
	"github.com/WessleyAI/eventbrief/engine/ingest"
	"github.com/WessleyAI/eventbrief/engine/rag"
	"github.com/WessleyAI/eventbrief/engine/render"
	"github.com/WessleyAI/eventbrief/engine/semantic"
	"github.com/WessleyAI/eventbrief/pkg/config"
	"github.com/WessleyAI/eventbrief/pkg/llm"
	"github.com/WessleyAI/eventbrief/pkg/metrics"
	"github.com/WessleyAI/eventbrief/pkg/natsutil"
	"github.com/WessleyAI/eventbrief/pkg/ollama"
	"github.com/WessleyAI/eventbrief/pkg/resilience"
	"google.golang.org/grpc"
)

// collectionPrefix names per-session Qdrant collections.
const collectionPrefix = "eventbrief"

// Build wires a Service from configuration. m may be nil. The returned
// cleanup closes every connection Build opened.
func Build(ctx context.Context, cfg *config.Config, m *metrics.FillMetrics, logger *slog.Logger) (*Service, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	chat := llm.New(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})

	var embedder semantic.Embedder
	switch cfg.Embed.Provider {
	case config.ProviderOpenAI:
		embedder = llm.New(llm.Config{
			BaseURL:        cfg.Embed.BaseURL,
			APIKey:         cfg.Embed.APIKey,
			EmbeddingModel: cfg.Embed.Model,
		})
	default:
		embedder = ollama.NewEmbedClient(cfg.Embed.OllamaURL, cfg.Embed.Model)
	}

	var newStore func(context.Context, string) (semantic.Store, error)
	if cfg.Index.Backend == config.BackendQdrant {
		conn, err := semantic.Dial(cfg.Index.QdrantURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("brief: qdrant: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		newStore = qdrantStores(conn)
	}

	var (
		calls    extract.CallRecorder
		recorder fill.Recorder
	)
	if m != nil {
		calls, recorder = m, m
	}

	breaker := resilience.NewBreaker(resilience.BreakerOpts{
		FailThreshold: 5,
		OnStateChange: func(from, to resilience.State) {
			logger.Warn("llm: circuit breaker", "from", from.String(), "to", to.String())
		},
	})
	extractor := extract.New(extract.Deps{
		LLM: chat,
		Selector: rag.NewSelector(rag.Options{
			MaxChars:      cfg.Context.MaxChars,
			SanitizeLimit: cfg.Context.SanitizeLimit,
		}, logger),
		Limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.LLM.RPS, Burst: 1}),
		Breaker: breaker,
		Metrics: calls,
		Logger:  logger,
	}, extract.Options{
		BatchSize:   cfg.Extract.BatchSize,
		MaxAttempts: cfg.Extract.MaxAttempts,
		BatchDelay:  cfg.Extract.BatchDelay,
	})

	sectionDelay := cfg.Extract.SectionDelay
	if sectionDelay == 0 {
		sectionDelay = -1
	}
	deps := Deps{
		Ingester: ingest.New(ingest.Deps{Embedder: embedder, NewStore: newStore, Logger: logger}),
		Filler: fill.New(fill.Deps{
			Extractor: extractor,
			Metrics:   recorder,
			Logger:    logger,
		}, fill.Options{SectionDelay: sectionDelay}),
		Renderer: render.New(render.Options{}, logger),
		Logger:   logger,
	}

	if cfg.HistoryPath != "" {
		store, err := history.Open(ctx, cfg.HistoryPath)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, func() { store.Close() })
		deps.History = store
	}
	if cfg.NATSURL != "" {
		events, err := natsutil.Connect(cfg.NATSURL, logger)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, events.Close)
		deps.Events = events
	}

	logger.Info("brief: engine ready",
		"model", cfg.LLM.Model,
		"embed_provider", cfg.Embed.Provider,
		"index", cfg.Index.Backend,
		"history", cfg.HistoryPath != "",
		"events", cfg.NATSURL != "",
	)
	return New(deps), cleanup, nil
}

func qdrantStores(conn *grpc.ClientConn) func(context.Context, string) (semantic.Store, error) {
	return func(_ context.Context, sessionID string) (semantic.Store, error) {
		return semantic.New(conn, semantic.CollectionName(collectionPrefix, sessionID)), nil
	}
}
