package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	Cache       CacheConfig      `json:"cache"`
	AI          AIConfig         `json:"ai"`
	RAG         RAGConfig        `json:"rag"`
	Upload      UploadConfig     `json:"upload"`
	FileStore   FileStoreConfig  `json:"file_store"`
	CORSOrigins []string         `json:"cors_origins"`
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

type CacheConfig struct {
	TTLSeconds      int `json:"ttl_seconds"`
	MaxEntries      int `json:"max_entries"`
	MessageHistory  int `json:"message_history"`
	EmbedCacheSize  int `json:"embed_cache_size"`
	EmbedCacheHours int `json:"embed_cache_hours"`
}

type AIConfig struct {
	Provider       string      `json:"provider"`
	Model          string      `json:"model"`
	EmbedModel     string      `json:"embed_model"`
	VisionModel    string      `json:"vision_model"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	Data           interface{} `json:"data"`
}

// RAGConfig carries the hybrid retrieval tuning knobs. Zero values fall back
// to the documented defaults; the Disable* flags default to enabled.
type RAGConfig struct {
	SemanticWeight        float64 `json:"semantic_weight"`
	MinRelevanceThreshold float64 `json:"min_relevance_threshold"`
	MaxContextLength      int     `json:"max_context_length"`
	DefaultTopK           int     `json:"default_topk"`
	ChunkSize             int     `json:"chunk_size"`
	ChunkOverlap          int     `json:"chunk_overlap"`
	DisableQueryExpansion bool    `json:"disable_query_expansion"`
	DisableResponseCache  bool    `json:"disable_response_cache"`
}

type UploadConfig struct {
	MaxFileSizeMB int   `json:"max_file_size_mb"`
	MaxBatchFiles int   `json:"max_batch_files"`
	Workers       int   `json:"workers"`
	RetentionDays int   `json:"retention_days"`
	MaxTotalBytes int64 `json:"-"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
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
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Data == nil {
		return nil, fmt.Errorf("ai.data is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.VisionModel == "" {
		cfg.AI.VisionModel = cfg.AI.Model
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 30
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 3600
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 10000
	}
	if cfg.Cache.MessageHistory == 0 {
		cfg.Cache.MessageHistory = 50
	}
	if cfg.Cache.EmbedCacheSize == 0 {
		cfg.Cache.EmbedCacheSize = 10000
	}
	if cfg.Cache.EmbedCacheHours == 0 {
		cfg.Cache.EmbedCacheHours = 2
	}
	if cfg.RAG.SemanticWeight == 0 {
		cfg.RAG.SemanticWeight = 0.7
	}
	if cfg.RAG.MinRelevanceThreshold == 0 {
		cfg.RAG.MinRelevanceThreshold = 0.3
	}
	if cfg.RAG.MaxContextLength == 0 {
		cfg.RAG.MaxContextLength = 4000
	}
	if cfg.RAG.DefaultTopK == 0 {
		cfg.RAG.DefaultTopK = 5
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 500
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 50
	}
	if cfg.Upload.MaxFileSizeMB == 0 {
		cfg.Upload.MaxFileSizeMB = 50
	}
	if cfg.Upload.MaxBatchFiles == 0 {
		cfg.Upload.MaxBatchFiles = 10
	}
	if cfg.Upload.Workers == 0 {
		cfg.Upload.Workers = 4
	}
	if cfg.Upload.RetentionDays == 0 {
		cfg.Upload.RetentionDays = 30
	}
	cfg.Upload.MaxTotalBytes = int64(cfg.Upload.MaxFileSizeMB) * 1024 * 1024
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	return &cfg, nil
}
