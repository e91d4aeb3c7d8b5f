package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/dkoval/ragbox/internal/models"
)

// EmbedderConfig configures the sentence-embedding model. The default
// model produces 768-dimension vectors.
type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	Dimension int
}

// Embedder maps text to fixed-dimension vectors. The underlying model
// client is expensive to set up, so it is initialized lazily on first
// use and cached for the process lifetime. The same Embedder instance
// must serve both ingestion and queries: vectors from different models
// are not comparable and nothing downstream can detect the mix.
type Embedder struct {
	config EmbedderConfig

	once   sync.Once
	client *ollama.LLM
	err    error
}

func NewEmbedderWithConfig(config EmbedderConfig) *Embedder {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Dimension == 0 {
		config.Dimension = 768
	}

	return &Embedder{config: config}
}

func NewEmbedder() *Embedder {
	return NewEmbedderWithConfig(EmbedderConfig{})
}

func (e *Embedder) init() {
	e.client, e.err = ollama.New(
		ollama.WithModel(e.config.Model),
		ollama.WithServerURL(e.config.BaseURL),
	)
	if e.err != nil {
		e.err = fmt.Errorf("%w: initialize embedding model: %v", models.ErrModelFailure, e.err)
	}
}

// CreateEmbedding embeds the given texts, one vector per input.
func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	e.once.Do(e.init)
	if e.err != nil {
		return nil, e.err
	}

	vectors, err := e.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: create embedding: %v", models.ErrModelFailure, err)
	}
	return vectors, nil
}

// Dimension reports the configured vector dimension.
func (e *Embedder) Dimension() int {
	return e.config.Dimension
}
