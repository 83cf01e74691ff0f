// Package app wires the procurement assistant from configuration. Both the
// HTTP server and procurectl build on it.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"procurement/internal/agent"
	"procurement/internal/chatlog"
	"procurement/internal/config"
	"procurement/internal/database"
	"procurement/internal/llm"
	"procurement/internal/query"
	"procurement/internal/search"
	"procurement/internal/services"
	"procurement/internal/tools"
)

// App holds the long-lived components of a running assistant
type App struct {
	Config    *config.Config
	Mongo     *database.MongoDB
	Store     *database.ProcurementStore
	Redis     *services.RedisService
	Metrics   *services.Metrics
	ChatLog   *chatlog.Logger
	Toolbox   *tools.Toolbox
	Agent     *agent.Agent
	Assistant *services.AssistantService
	Stats     *services.StatsService
	Examples  []query.Example
}

// Connect opens MongoDB and the procurement collection. It is all ingest needs.
func Connect(cfg *config.Config) (*App, error) {
	log.Println("🔗 Connecting to MongoDB...")
	mongoDB, err := database.NewMongoDB(cfg.MongoURI, cfg.MongoDBName, cfg.MongoTimeout)
	if err != nil {
		return nil, err
	}
	return &App{
		Config: cfg,
		Mongo:  mongoDB,
		Store:  database.NewProcurementStore(mongoDB.Collection(cfg.MongoCollection)),
	}, nil
}

// New connects and builds the full assistant. Metrics register with reg.
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	a, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := a.build(ctx, reg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, reg prometheus.Registerer) error {
	cfg := a.Config

	model, err := newModel(cfg, cfg.LLMModel)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	translatorModel := llm.Model(model)
	if cfg.TranslatorModel != "" && cfg.TranslatorModel != cfg.LLMModel {
		if translatorModel, err = newModel(cfg, cfg.TranslatorModel); err != nil {
			return fmt.Errorf("failed to create translator client: %w", err)
		}
	}
	log.Printf("🤖 Model: %s / %s", model.Provider(), model.ModelName())

	a.Metrics = services.NewMetrics(reg)
	a.Examples = query.DefaultExamples()

	executor := query.NewExecutor(a.Store, cfg.MaxQueryResults, cfg.QueryTimeout)
	executor.SetObserver(a.Metrics.ObserveQuery)
	translator := query.NewTranslator(translatorModel, a.Examples, cfg.FewShotExamples, cfg.MaxQueryResults)

	var searcher tools.WebSearcher
	if cfg.EnableWebSearch {
		svc := newSearchService(cfg)
		log.Printf("🔍 Web search enabled via %s", svc.ProviderName())
		searcher = svc
	}

	a.Toolbox = tools.NewToolbox(query.NewSchemaInspector(a.Store), translator, executor, searcher)
	a.Agent, err = agent.New(model, a.Toolbox, agent.WithMaxIterations(cfg.MaxIterations))
	if err != nil {
		return err
	}

	a.ChatLog = a.newChatLog(ctx)
	a.Assistant = services.NewAssistantService(a.Agent, a.newSessionStore(), a.ChatLog, a.Metrics, a.Mongo, services.AssistantConfig{
		Provider: model.Provider(),
		Model:    model.ModelName(),
		Tools:    a.Toolbox.Names(),
	})
	a.Stats = services.NewStatsService(a.Store, cfg.StatsRefreshInterval)
	return nil
}

func newModel(cfg *config.Config, name string) (*llm.Client, error) {
	return llm.NewClient(llm.Config{
		Provider:    cfg.LLMProvider,
		Model:       name,
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.APIKey(),
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
		MaxRetries:  cfg.LLMMaxRetries,
	})
}

func newSearchService(cfg *config.Config) *search.Service {
	var provider search.Provider
	switch cfg.SearchProvider {
	case "searxng":
		provider = search.NewSearXNG(cfg.SearXNGURLs)
	default:
		provider = search.NewDuckDuckGo()
	}
	return search.NewService(provider, cfg.SearchCacheTTL, cfg.SearchRatePerSec, cfg.SearchMaxResults)
}

// newSessionStore prefers Redis so sessions survive restarts and are shared
// between instances
func (a *App) newSessionStore() services.SessionStore {
	cfg := a.Config
	if cfg.RedisURL != "" {
		redisService, err := services.NewRedisService(cfg.RedisURL)
		if err == nil {
			a.Redis = redisService
			log.Println("✅ Session history stored in Redis")
			return services.NewRedisSessionStore(redisService, cfg.SessionHistoryLimit, cfg.SessionTTL)
		}
		log.Printf("⚠️ Redis unavailable, keeping session history in memory: %v", err)
	}
	return services.NewMemorySessionStore(cfg.SessionHistoryLimit, cfg.SessionTTL)
}

// newChatLog builds the configured sinks. A sink that cannot be opened is
// skipped and the CSV fallback takes its records.
func (a *App) newChatLog(ctx context.Context) *chatlog.Logger {
	cfg := a.Config
	if !cfg.ChatLogEnabled {
		log.Println("⚠️ Chat logging disabled")
		return chatlog.Disabled()
	}

	var fallback chatlog.Sink
	if cfg.ChatLogCSVPath != "" {
		fallback = chatlog.NewCSVSink(cfg.ChatLogCSVPath)
	}

	var sinks []chatlog.Sink
	if cfg.ChatLogSQLDriver != "" {
		db, err := database.OpenSQL(cfg.ChatLogSQLDriver, cfg.ChatLogSQLDSN)
		if err == nil {
			var sink *chatlog.SQLSink
			if sink, err = chatlog.NewSQLSink(ctx, db, cfg.ChatLogSQLTable); err == nil {
				sinks = append(sinks, sink)
			} else {
				db.Close()
			}
		}
		if err != nil {
			log.Printf("⚠️ %s chat-log sink unavailable: %v", cfg.ChatLogSQLDriver, err)
		}
	}
	if cfg.ChatLogMongo {
		sinks = append(sinks, chatlog.NewMongoSink(a.Mongo.Collection(database.CollectionChatLogs)))
	}

	logger := chatlog.NewLogger(true, fallback, sinks...)
	log.Printf("📝 Chat logging to %v", logger.SinkNames())
	return logger
}

// Collection reports connectivity and size of the procurement collection
func (a *App) Collection() *Collection {
	return &Collection{mongo: a.Mongo, store: a.Store}
}

// Collection adapts the MongoDB client and store for health checks
type Collection struct {
	mongo *database.MongoDB
	store *database.ProcurementStore
}

func (c *Collection) Ping(ctx context.Context) error {
	return c.mongo.Ping(ctx)
}

func (c *Collection) Count(ctx context.Context) (int64, error) {
	return c.store.Count(ctx)
}

// Close releases every connection the app opened
func (a *App) Close() {
	if a.ChatLog != nil {
		if err := a.ChatLog.Close(); err != nil {
			log.Printf("⚠️ Error closing chat log: %v", err)
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Mongo.Close(ctx); err != nil {
			log.Printf("⚠️ Error closing MongoDB: %v", err)
		}
	}
}
