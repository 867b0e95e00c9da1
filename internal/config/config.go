package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Extractor ExtractorConfig
	Database  DatabaseConfig
	Matching  MatchingConfig
	Cache     CacheConfig
	Events    EventsConfig
}

type ExtractorConfig struct {
	URL     string        // base URL of the face analysis service (e.g., http://localhost:8000)
	Timeout time.Duration // per-request timeout
	Retries int           // additional attempts after the first failure
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MatchingConfig struct {
	Threshold          float64 // minimum cosine similarity to accept a match
	AgeWindow          int     // narrow search covers declared age +/- AgeWindow
	MaxBroadCandidates int     // broad search falls back to nearest-K above this population
}

type CacheConfig struct {
	AnalysisTTL  time.Duration // analysis result cache lifetime
	EmbeddingTTL time.Duration // per-customer embedding cache lifetime
}

type EventsConfig struct {
	KeepAliveInterval time.Duration // keep-alive broadcast period
}

// defaultsFile mirrors the structure of the embedded defaults.yaml.
type defaultsFile struct {
	Matching struct {
		Threshold          float64 `yaml:"threshold"`
		AgeWindow          int     `yaml:"age_window"`
		MaxBroadCandidates int     `yaml:"max_broad_candidates"`
	} `yaml:"matching"`
	Cache struct {
		AnalysisTTLSeconds  int `yaml:"analysis_ttl_seconds"`
		EmbeddingTTLSeconds int `yaml:"embedding_ttl_seconds"`
	} `yaml:"cache"`
	Events struct {
		KeepAliveSeconds int `yaml:"keep_alive_seconds"`
	} `yaml:"events"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Extractor: ExtractorConfig{
			URL:     envString("EXTRACTOR_URL", "http://localhost:8000"),
			Timeout: time.Duration(envInt("EXTRACTOR_TIMEOUT_SECONDS", 10)) * time.Second,
			Retries: envInt("EXTRACTOR_RETRIES", 2),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Matching: MatchingConfig{
			Threshold:          envFloat("MATCH_THRESHOLD", defaults.Matching.Threshold),
			AgeWindow:          envInt("MATCH_AGE_WINDOW", defaults.Matching.AgeWindow),
			MaxBroadCandidates: envInt("MATCH_MAX_BROAD_CANDIDATES", defaults.Matching.MaxBroadCandidates),
		},
		Cache: CacheConfig{
			AnalysisTTL:  time.Duration(envInt("CACHE_ANALYSIS_TTL_SECONDS", defaults.Cache.AnalysisTTLSeconds)) * time.Second,
			EmbeddingTTL: time.Duration(envInt("CACHE_EMBEDDING_TTL_SECONDS", defaults.Cache.EmbeddingTTLSeconds)) * time.Second,
		},
		Events: EventsConfig{
			KeepAliveInterval: time.Duration(envInt("EVENTS_KEEP_ALIVE_SECONDS", defaults.Events.KeepAliveSeconds)) * time.Second,
		},
	}
}
