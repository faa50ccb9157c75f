package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Ollama      OllamaConfig              `json:"ollama"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Redis       RedisConfig               `json:"redis"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Vector      VectorConfig              `json:"vector"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// EnableWebSearch turns on the web search tools for RAG answers.
	EnableWebSearch bool `json:"enable_web_search"`
}

// OllamaConfig points at the local model runtime and names the model groups
// exposed over the REST surface.
type OllamaConfig struct {
	Endpoint       string                    `json:"endpoint"`
	EmbeddingModel string                    `json:"embedding_model"`
	Models         map[string]LlmModelConfig `json:"models"`
}

// LlmModelConfig is one model group (text, vision, multimodal, embedding).
type LlmModelConfig struct {
	Default string   `json:"default"`
	Models  []string `json:"models"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

// VectorConfig selects the vector store backend and the embedding dimension.
type VectorConfig struct {
	Backend string `json:"backend"` // "memory" or "redis"
	Size    int    `json:"size"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Ollama.Endpoint == "" {
		cfg.Ollama.Endpoint = "http://127.0.0.1:11434"
	}
	if cfg.Vector.Size <= 0 {
		cfg.Vector.Size = 384
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "memory"
	}

	return &cfg, nil
}
