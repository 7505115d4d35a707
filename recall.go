// Package recall is a semantic memory engine for conversational
// applications. It archives conversation turns, learns durable facts and
// recurring themes from them, and assembles context bundles that rank past
// turns by embedding similarity to a new query.
//
// Example:
//
//	client, err := recall.New(ctx,
//	    recall.WithMongo("mongodb://localhost:27017", "recall"),
//	    recall.WithOllama("http://localhost:11434", "nomic-embed-text"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	_, err = client.RecordTurn(ctx, recall.Turn{
//	    UserID:      "u1",
//	    UserMessage: "I work as a teacher and I love painting on weekends",
//	    Emotion:     "happy",
//	})
//
//	bundle, err := client.Recall(ctx, "u1", "how's my job going", 5)
package recall

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/blueberrycongee/recall/internal/config"
	"github.com/blueberrycongee/recall/internal/embedding"
	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/internal/memory/inmem"
	"github.com/blueberrycongee/recall/internal/memory/mongostore"
	"github.com/blueberrycongee/recall/internal/observability"
	"github.com/blueberrycongee/recall/pkg/types"
)

// Turn is one completed exchange handed to RecordTurn. ContextStrength is
// optional: the strength of the recall bundle the response was generated
// with, kept on the archived turn for later analysis.
type Turn struct {
	UserID            string
	UserMessage       string
	AssistantResponse string
	Emotion           string
	ContextStrength   float64
}

// Client is the main entry point for the recall library.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	engine  *memory.Engine
	cfg     *config.Manager
	logger  *observability.Logger
	tracing *observability.TracerProvider

	mongoClient *mongo.Client
	redisClient *redis.Client
	watchCancel context.CancelFunc
}

// New creates a recall client. Persistence defaults to in-memory stores;
// WithMongo or WithStores selects a durable backend. The embedder defaults
// to Ollama and is always wrapped so that embedding failures degrade to
// archiving without a vector instead of failing the turn.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	var cc ClientConfig
	for _, opt := range opts {
		opt(&cc)
	}

	var (
		cfg *config.Config
		err error
	)
	if cc.ConfigFile != "" {
		cfg, err = config.LoadFromFile(cc.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}
	cc.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	var obsLogger *observability.Logger
	if cc.Logger != nil {
		obsLogger = &observability.Logger{Logger: cc.Logger}
	} else {
		obsLogger = observability.NewLoggerFromSettings(cfg.Logging.Level, cfg.Logging.Format)
	}

	c := &Client{logger: obsLogger}

	// Connection settings are fixed at startup; only engine tunables take
	// effect on a hot reload of the config file.
	manager := config.NewStaticManager(cfg, obsLogger.Slog())
	if cc.ConfigFile != "" {
		watchCtx, cancel := context.WithCancel(context.Background())
		c.watchCancel = cancel
		fileMgr, err := config.NewManager(cc.ConfigFile, obsLogger.Slog())
		if err != nil {
			cancel()
			return nil, fmt.Errorf("load config: %w", err)
		}
		cc.apply(fileMgr.Get())
		if err := fileMgr.Watch(watchCtx); err != nil {
			cancel()
			return nil, fmt.Errorf("watch config: %w", err)
		}
		manager = fileMgr
	}
	c.cfg = manager

	tracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		_ = c.cleanup(ctx)
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	c.tracing = tracing

	embedder, err := c.buildEmbedder(ctx, &cc, cfg)
	if err != nil {
		_ = c.cleanup(ctx)
		return nil, err
	}

	stores, err := c.buildStores(ctx, &cc, cfg)
	if err != nil {
		_ = c.cleanup(ctx)
		return nil, err
	}

	c.engine = memory.NewEngine(manager, stores, embedder, obsLogger, tracing.Tracer())
	return c, nil
}

func (c *Client) buildEmbedder(ctx context.Context, cc *ClientConfig, cfg *config.Config) (embedding.Embedder, error) {
	base := cc.Embedder
	if base == nil {
		ollama, err := embedding.NewOllamaEmbedder(ctx, embedding.OllamaConfig{
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
			Timeout: cfg.Embedding.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		base = ollama
	}

	if cfg.Cache.RedisAddr != "" {
		c.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		base = embedding.NewCache(base, c.redisClient, cfg.Embedding.Model, cfg.Cache.EmbeddingTTL, c.logger)
	}

	return embedding.NewFallback(base, c.logger), nil
}

func (c *Client) buildStores(ctx context.Context, cc *ClientConfig, cfg *config.Config) (memory.Stores, error) {
	if cc.Stores != nil {
		return *cc.Stores, nil
	}

	if cc.MongoURI == "" {
		return memory.Stores{
			Conversations: inmem.NewConversationStore(cfg.Archive.MaxTurnsPerUser),
			Facts:         inmem.NewFactStore(),
			Themes:        inmem.NewThemeStore(),
		}, nil
	}

	client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return memory.Stores{}, fmt.Errorf("connect mongo: %w", err)
	}
	c.mongoClient = client

	db := client.Database(cfg.Mongo.Database)
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		return memory.Stores{}, fmt.Errorf("ensure indexes: %w", err)
	}

	return memory.Stores{
		Conversations: mongostore.NewConversationStore(db, cfg.Archive.MaxTurnsPerUser),
		Facts:         mongostore.NewFactStore(db),
		Themes:        mongostore.NewThemeStore(db),
	}, nil
}

// RecordTurn archives a completed exchange and updates learned facts and
// theme aggregates. The returned turn carries the generated ID, the
// extraction count, and the stored embedding.
func (c *Client) RecordTurn(ctx context.Context, turn Turn) (*types.ConversationTurn, error) {
	return c.engine.RecordTurn(ctx, memory.TurnInput{
		UserID:            turn.UserID,
		UserMessage:       turn.UserMessage,
		AssistantResponse: turn.AssistantResponse,
		Emotion:           turn.Emotion,
		ContextStrength:   turn.ContextStrength,
	})
}

// Recall returns the context bundle for a query: up to k similar past
// turns, all learned facts grouped by type, and the top theme aggregates.
// Pass k <= 0 to use the configured default.
func (c *Client) Recall(ctx context.Context, userID, query string, k int) (*types.ContextBundle, error) {
	return c.engine.Recall(ctx, userID, query, k)
}

// Profile returns a summary of everything learned about a user.
func (c *Client) Profile(ctx context.Context, userID string) (*types.ProfileSummary, error) {
	return c.engine.Profile(ctx, userID)
}

// Close releases all resources: the config watcher, tracing, and any
// Mongo or Redis connections.
func (c *Client) Close(ctx context.Context) error {
	return c.cleanup(ctx)
}

func (c *Client) cleanup(ctx context.Context) error {
	var firstErr error
	if c.watchCancel != nil {
		c.watchCancel()
	}
	if c.cfg != nil {
		if err := c.cfg.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.tracing != nil {
		if err := c.tracing.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.mongoClient != nil {
		if err := c.mongoClient.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
