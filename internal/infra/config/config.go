package config

import (
	"os"
	"strconv"
	"strings"
)

// DBConfig holds passage-store connection settings.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	MaxConns int
	MinConns int
}

// EmbedderConfig holds embedding-provider settings.
type EmbedderConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	TimeoutSeconds    int
	RequestsPerSecond float64
}

// RetrievalEnvConfig holds retrieval tunables exposed via environment.
type RetrievalEnvConfig struct {
	SearchLimit         int
	SimilarityThreshold float64
	RRFK                float64
	SearchTimeoutMs     int
	MaxResults          int
	WeightSimilarity    float64
	WeightContext       float64
	MedicationBoost     float64
	NearDupPenalty      float64
}

// CacheConfig bounds the embedding cache.
type CacheConfig struct {
	MaxEntries int
}

// Config is the full engine configuration, loaded from the environment.
type Config struct {
	Env                string
	Port               string
	TerminologyPath    string
	LatencyWindowSize  int
	EnableOTel         bool
	OTelEndpoint       string
	DB                 DBConfig
	Embedder           EmbedderConfig
	Retrieval          RetrievalEnvConfig
	Cache              CacheConfig
}

// Load reads configuration from environment variables with production
// defaults.
func Load() *Config {
	return &Config{
		Env:               getEnv("ENV", "development"),
		Port:              getEnv("PORT", "9020"),
		TerminologyPath:   getEnv("TERMINOLOGY_PATH", ""),
		LatencyWindowSize: getEnvInt("LATENCY_WINDOW_SIZE", 512),
		EnableOTel:        getEnvBool("ENABLE_OTEL", false),
		OTelEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "protocol-db"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "protocol_user"),
			Password: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "protocol_password"),
			Name:     getEnv("DB_NAME", "protocol_db"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
			MinConns: getEnvInt("DB_MIN_CONNS", 2),
		},
		Embedder: EmbedderConfig{
			BaseURL:           getEnv("EMBEDDER_URL", "https://api.voyageai.com"),
			APIKey:            getSecret("VOYAGE_API_KEY", "VOYAGE_API_KEY_FILE", ""),
			Model:             getEnv("EMBEDDING_MODEL", "voyage-large-2"),
			TimeoutSeconds:    getEnvInt("EMBEDDER_TIMEOUT", 10),
			RequestsPerSecond: getEnvFloat("EMBEDDER_RPS", 3),
		},
		Retrieval: RetrievalEnvConfig{
			SearchLimit:         getEnvInt("RETRIEVAL_SEARCH_LIMIT", 30),
			SimilarityThreshold: getEnvFloat("RETRIEVAL_SIMILARITY_THRESHOLD", 0.30),
			RRFK:                getEnvFloat("RETRIEVAL_RRF_K", 60),
			SearchTimeoutMs:     getEnvInt("RETRIEVAL_SEARCH_TIMEOUT_MS", 1500),
			MaxResults:          getEnvInt("RETRIEVAL_MAX_RESULTS", 8),
			WeightSimilarity:    getEnvFloat("RERANK_WEIGHT_SIMILARITY", 0.85),
			WeightContext:       getEnvFloat("RERANK_WEIGHT_CONTEXT", 0.15),
			MedicationBoost:     getEnvFloat("RERANK_MEDICATION_BOOST", 0.05),
			NearDupPenalty:      getEnvFloat("RERANK_NEAR_DUP_PENALTY", 0.25),
		},
		Cache: CacheConfig{
			MaxEntries: getEnvInt("EMBEDDING_CACHE_SIZE", 2048),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
