package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port                 int              `json:"port"`
	JWTSecret            string           `json:"jwt_secret"`
	LogConfig            logger.LogConfig `json:"log_config"`
	CORSAllowlist        []string         `json:"cors_allowlist"`
	ChatRateLimitSeconds int              `json:"chat_rate_limit_seconds"`
	Database             DatabaseConfig   `json:"database"`
	AI                   AIConfig         `json:"ai"`
	Retrieval            RetrievalConfig  `json:"retrieval"`
	Jobs                 JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	Provider        string      `json:"provider"`
	Data            interface{} `json:"data"`
	ChatModel       string      `json:"chat_model"`
	EmbedModel      string      `json:"embed_model"`
	Timeout         int         `json:"timeout"`
	EmbedCacheSize  int         `json:"embed_cache_size"`
	EmbedCacheTTL   int         `json:"embed_cache_ttl_minutes"`
	MaxContextChars int         `json:"max_context_chars"`
}

// RetrievalConfig carries the chunking and similarity policy. The thresholds
// and chunk sizes are tunable defaults, not correctness constants.
type RetrievalConfig struct {
	MaxChunkSize      int     `json:"max_chunk_size"`
	ChunkOverlap      int     `json:"chunk_overlap"`
	MinChunkSize      int     `json:"min_chunk_size"`
	SearchThreshold   float32 `json:"search_threshold"`
	SearchLimit       int     `json:"search_limit"`
	RelatedThreshold  float32 `json:"related_threshold"`
	RelatedLimit      int     `json:"related_limit"`
	ChatContextChunks int     `json:"chat_context_chunks"`
}

type JobsConfig struct {
	ReindexSpec      string `json:"reindex_spec"`
	ReindexBatch     int    `json:"reindex_batch"`
	CacheCleanupSpec string `json:"cache_cleanup_spec"`
	CacheKeepDays    int    `json:"cache_keep_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.AI.EmbedCacheSize == 0 {
		cfg.AI.EmbedCacheSize = 10000
	}
	if cfg.AI.EmbedCacheTTL == 0 {
		cfg.AI.EmbedCacheTTL = 120
	}
	if cfg.AI.MaxContextChars == 0 {
		cfg.AI.MaxContextChars = 24000
	}
	cfg.Retrieval = cfg.Retrieval.withDefaults()
	if cfg.Jobs.ReindexBatch == 0 {
		cfg.Jobs.ReindexBatch = 20
	}
	if cfg.Jobs.CacheKeepDays == 0 {
		cfg.Jobs.CacheKeepDays = 30
	}
	return &cfg, nil
}

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = 500
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 100
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = 50
	}
	if c.SearchThreshold == 0 {
		c.SearchThreshold = 0.3
	}
	if c.SearchLimit == 0 {
		c.SearchLimit = 20
	}
	if c.RelatedThreshold == 0 {
		c.RelatedThreshold = 0.5
	}
	if c.RelatedLimit == 0 {
		c.RelatedLimit = 5
	}
	if c.ChatContextChunks == 0 {
		c.ChatContextChunks = 8
	}
	return c
}
