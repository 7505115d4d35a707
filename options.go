package recall

import (
	"log/slog"
	"time"

	"github.com/blueberrycongee/recall/internal/config"
	"github.com/blueberrycongee/recall/internal/embedding"
	"github.com/blueberrycongee/recall/internal/memory"
)

// ClientConfig holds all configuration for the recall client.
type ClientConfig struct {
	// ConfigFile is an optional YAML file. When set it is loaded first and
	// watched for changes; other options override its values.
	ConfigFile string

	// Logger overrides the logger built from the config file settings.
	Logger *slog.Logger

	// Embedder overrides the default Ollama embedding client.
	Embedder embedding.Embedder

	// Stores overrides the default persistence layer. When unset, a Mongo
	// URI selects the document store and everything else runs in memory.
	Stores *memory.Stores

	// Mongo connection; empty URI means in-memory stores.
	MongoURI      string
	MongoDatabase string

	// Ollama connection for the default embedder.
	OllamaBaseURL string
	OllamaModel   string

	// Redis embedding cache; empty address disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Engine tunable overrides. Zero values keep the config defaults.
	RecallK         int
	MaxTurnsPerUser int
	ProfileTTL      time.Duration

	// Tracing. Disabled unless an endpoint is set.
	TracingEndpoint    string
	TracingServiceName string
	TracingSampleRate  float64
}

// Option configures the client.
type Option func(*ClientConfig)

// WithConfigFile loads settings from a YAML file and watches it for
// changes. Engine tunables reload without a restart; connection settings
// are read once at startup.
func WithConfigFile(path string) Option {
	return func(c *ClientConfig) {
		c.ConfigFile = path
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// WithEmbedder sets a custom embedding client. The caching and fallback
// wrappers still apply around it.
func WithEmbedder(e embedding.Embedder) Option {
	return func(c *ClientConfig) {
		c.Embedder = e
	}
}

// WithStores sets custom persistence implementations, bypassing Mongo and
// in-memory selection entirely.
func WithStores(stores memory.Stores) Option {
	return func(c *ClientConfig) {
		c.Stores = &stores
	}
}

// WithMongo selects MongoDB persistence.
func WithMongo(uri, database string) Option {
	return func(c *ClientConfig) {
		c.MongoURI = uri
		c.MongoDatabase = database
	}
}

// WithOllama points the default embedder at an Ollama server.
func WithOllama(baseURL, model string) Option {
	return func(c *ClientConfig) {
		c.OllamaBaseURL = baseURL
		c.OllamaModel = model
	}
}

// WithRedisCache enables the Redis embedding cache.
func WithRedisCache(addr, password string, db int) Option {
	return func(c *ClientConfig) {
		c.RedisAddr = addr
		c.RedisPassword = password
		c.RedisDB = db
	}
}

// WithRecallK sets the default number of similar turns per recall.
func WithRecallK(k int) Option {
	return func(c *ClientConfig) {
		c.RecallK = k
	}
}

// WithMaxTurnsPerUser caps the per-user archive; oldest turns are pruned
// first. Zero means unlimited.
func WithMaxTurnsPerUser(n int) Option {
	return func(c *ClientConfig) {
		c.MaxTurnsPerUser = n
	}
}

// WithProfileTTL sets how long profile summaries are cached.
func WithProfileTTL(ttl time.Duration) Option {
	return func(c *ClientConfig) {
		c.ProfileTTL = ttl
	}
}

// WithTracing enables OpenTelemetry tracing via OTLP gRPC.
func WithTracing(endpoint, serviceName string, sampleRate float64) Option {
	return func(c *ClientConfig) {
		c.TracingEndpoint = endpoint
		c.TracingServiceName = serviceName
		c.TracingSampleRate = sampleRate
	}
}

// apply merges the option overrides into a loaded configuration.
func (c *ClientConfig) apply(cfg *config.Config) {
	if c.MongoURI != "" {
		cfg.Mongo.URI = c.MongoURI
	}
	if c.MongoDatabase != "" {
		cfg.Mongo.Database = c.MongoDatabase
	}
	if c.OllamaBaseURL != "" {
		cfg.Embedding.BaseURL = c.OllamaBaseURL
	}
	if c.OllamaModel != "" {
		cfg.Embedding.Model = c.OllamaModel
	}
	if c.RedisAddr != "" {
		cfg.Cache.RedisAddr = c.RedisAddr
		cfg.Cache.RedisPassword = c.RedisPassword
		cfg.Cache.RedisDB = c.RedisDB
	}
	if c.RecallK > 0 {
		cfg.Engine.RecallK = c.RecallK
	}
	if c.MaxTurnsPerUser > 0 {
		cfg.Archive.MaxTurnsPerUser = c.MaxTurnsPerUser
	}
	if c.ProfileTTL > 0 {
		cfg.Cache.ProfileTTL = c.ProfileTTL
	}
	if c.TracingEndpoint != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = c.TracingEndpoint
		if c.TracingServiceName != "" {
			cfg.Tracing.ServiceName = c.TracingServiceName
		}
		if c.TracingSampleRate > 0 {
			cfg.Tracing.SampleRate = c.TracingSampleRate
		}
	}
}
