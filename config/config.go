package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string            `mapstructure:"port"`
	Log         LogConfig         `mapstructure:"log"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	Chunking    ChunkingConfig    `mapstructure:"chunking"`
	Download    DownloadConfig    `mapstructure:"download"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"` // empty means stderr only
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
}

type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"` // "openai" or "gemini"
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"EMBEDDING_API_KEY"`
	BatchSize int    `mapstructure:"batch_size"`
	Quantized bool   `mapstructure:"quantized"`
	Pooling   string `mapstructure:"pooling"`
	Normalize bool   `mapstructure:"normalize"`
}

type VectorStoreConfig struct {
	Host             string `mapstructure:"host"`
	Scheme           string `mapstructure:"scheme"`
	APIKey           string `mapstructure:"WEAVIATE_APIKEY"`
	CollectionPrefix string `mapstructure:"collection_prefix"`
	MaxFailures      int    `mapstructure:"max_failures"` // consecutive failures before the breaker opens
	IndexOnly        bool   `mapstructure:"index_only"`   // skip embedding model warm-up on Initialize
}

type RetrievalConfig struct {
	DefaultTopK        int     `mapstructure:"default_top_k"`
	MaxTopK            int     `mapstructure:"max_top_k"`
	MinSimilarityScore float64 `mapstructure:"min_similarity_score"`
}

type ChunkingConfig struct {
	MaxChunkSize     int  `mapstructure:"max_chunk_size"`
	Overlap          int  `mapstructure:"overlap"`
	MinChunkSize     int  `mapstructure:"min_chunk_size"`
	SplitOnSentences bool `mapstructure:"split_on_sentences"`
}

type DownloadConfig struct {
	MaxRetries    int    `mapstructure:"max_retries"`
	TimeoutMs     int    `mapstructure:"timeout_ms"`
	MaxFileSizeMB int    `mapstructure:"max_file_size_mb"`
	UserAgent     string `mapstructure:"user_agent"`
	Parallel      bool   `mapstructure:"parallel"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8088")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "sentence-transformers/all-MiniLM-L6-v2")
	v.SetDefault("embedding.base_url", "http://localhost:1234/v1")
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.quantized", true)
	v.SetDefault("embedding.pooling", "mean")
	v.SetDefault("embedding.normalize", true)

	v.SetDefault("vector_store.host", "localhost:8080")
	v.SetDefault("vector_store.scheme", "http")
	v.SetDefault("vector_store.collection_prefix", "Lesson_")
	v.SetDefault("vector_store.max_failures", 5)
	v.SetDefault("vector_store.index_only", false)

	v.SetDefault("retrieval.default_top_k", 5)
	v.SetDefault("retrieval.max_top_k", 10)
	v.SetDefault("retrieval.min_similarity_score", 0.3)

	v.SetDefault("chunking.max_chunk_size", 1000)
	v.SetDefault("chunking.overlap", 100)
	v.SetDefault("chunking.min_chunk_size", 50)
	v.SetDefault("chunking.split_on_sentences", true)

	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.timeout_ms", 30000)
	v.SetDefault("download.max_file_size_mb", 50)
	v.SetDefault("download.user_agent", "Mozilla/5.0 (compatible; lesson-rag/1.0)")
	v.SetDefault("download.parallel", true)
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Set up Viper to read from config file
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set up Viper to read from environment variables
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Bind environment variables
	v.BindEnv("embedding.EMBEDDING_API_KEY", "EMBEDDING_API_KEY")
	v.BindEnv("vector_store.WEAVIATE_APIKEY", "WEAVIATE_APIKEY")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns the process-wide defaults without reading a file.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		// Defaults always unmarshal into the matching struct.
		panic(fmt.Sprintf("default config unmarshal: %v", err))
	}
	return &config
}
