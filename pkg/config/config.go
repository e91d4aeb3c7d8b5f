package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		BaseURL        string `yaml:"base_url"`
		Model          string `yaml:"model"`
		EmbeddingModel string `yaml:"embedding_model"`
		MaxTokens      int    `yaml:"max_tokens"`
	} `yaml:"llm"`

	Index struct {
		Backend   string `yaml:"backend"` // "file" or "pgvector"
		Dir       string `yaml:"dir"`
		DBUrl     string `yaml:"db_url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		TopK      int    `yaml:"top_k"`
	} `yaml:"index"`

	Loader struct {
		UploadDir        string  `yaml:"upload_dir"`
		FetchTimeoutSecs int     `yaml:"fetch_timeout_secs"`
		UserAgent        string  `yaml:"user_agent"`
		RateLimit        float64 `yaml:"rate_limit"`
	} `yaml:"loader"`

	Chunker struct {
		ChunkSize    int `yaml:"chunk_size"`
		// ChunkOverlap is a pointer so an explicit chunk_overlap: 0 is
		// distinguishable from the key being absent.
		ChunkOverlap *int `yaml:"chunk_overlap"`
	} `yaml:"chunker"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/ragbox/config.yaml"),
			"/etc/ragbox/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "llama3.1:8b"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "file"
	}
	if config.Index.Dir == "" {
		config.Index.Dir = "data/index"
	}
	if config.Index.TableName == "" {
		config.Index.TableName = "chunks"
	}
	if config.Index.VectorDim == 0 {
		config.Index.VectorDim = 768
	}
	if config.Index.TopK == 0 {
		config.Index.TopK = 4
	}

	if config.Loader.UploadDir == "" {
		config.Loader.UploadDir = "data/uploads"
	}
	if config.Loader.FetchTimeoutSecs == 0 {
		config.Loader.FetchTimeoutSecs = 15
	}
	if config.Loader.RateLimit == 0 {
		config.Loader.RateLimit = 2.0
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 1000
	}
	if config.Chunker.ChunkOverlap == nil {
		overlap := 200
		config.Chunker.ChunkOverlap = &overlap
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.DBUrl = dbURL
	}
	if dataDir := os.Getenv("RAGBOX_DATA_DIR"); dataDir != "" {
		config.Index.Dir = filepath.Join(dataDir, "index")
		config.Loader.UploadDir = filepath.Join(dataDir, "uploads")
	}
}
