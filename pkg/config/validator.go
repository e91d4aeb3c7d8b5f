package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	// Validate index config
	switch c.Index.Backend {
	case "file", "pgvector":
	default:
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: fmt.Sprintf("unknown backend: %s", c.Index.Backend),
		})
	}

	if c.Index.Backend == "pgvector" && c.Index.DBUrl == "" {
		errors = append(errors, ValidationError{
			Field:   "index.db_url",
			Message: "db_url is required for the pgvector backend",
		})
	}

	if c.Index.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Index.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.top_k",
			Message: "top_k must be positive",
		})
	}

	// Validate loader config
	if c.Loader.FetchTimeoutSecs < 1 {
		errors = append(errors, ValidationError{
			Field:   "loader.fetch_timeout_secs",
			Message: "fetch_timeout_secs must be positive",
		})
	}

	if c.Loader.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "loader.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate chunker config
	if c.Chunker.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if o := c.Chunker.ChunkOverlap; o != nil && (*o < 0 || *o >= c.Chunker.ChunkSize) {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	return errors
}
