package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/dkoval/ragbox/internal/models"
)

// ChatConfig represents the configuration for the answering engine.
type ChatConfig struct {
	Model          string
	MaxTokens      int
	SystemTemplate string
	PromptTemplate string
	BaseURL        string // Ollama server URL
}

// ChatEngine produces answers grounded in retrieved context. Decoding
// is deterministic (temperature 0) so the same context and question
// yield the same answer.
type ChatEngine struct {
	config ChatConfig

	once   sync.Once
	client llms.Model
	err    error
}

// NewWithConfig creates a new ChatEngine with the given configuration.
// The model client is initialized lazily on first Answer call.
func NewWithConfig(config ChatConfig) *ChatEngine {
	if config.Model == "" {
		config.Model = "llama3.1:8b"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are a research assistant. Answer strictly from the supplied context; if the context does not contain the answer, say so."
	}
	if config.PromptTemplate == "" {
		config.PromptTemplate = "Answer based on context: %s\n\nQuestion: %s"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	return &ChatEngine{config: config}
}

// NewWithModel creates a ChatEngine on an already-constructed model.
// Used by tests to substitute a stub for the external LLM.
func NewWithModel(config ChatConfig, model llms.Model) *ChatEngine {
	ce := NewWithConfig(config)
	ce.once.Do(func() { ce.client = model })
	return ce
}

func (ce *ChatEngine) init() {
	ce.client, ce.err = ollama.New(
		ollama.WithModel(ce.config.Model),
		ollama.WithServerURL(ce.config.BaseURL),
	)
	if ce.err != nil {
		ce.err = fmt.Errorf("%w: initialize LLM: %v", models.ErrModelFailure, ce.err)
	}
}

// Answer assembles the grounding prompt from the retrieved context and
// the question and returns the model output verbatim. A failing model
// call is surfaced as ErrModelFailure; there is no fallback.
func (ce *ChatEngine) Answer(ctx context.Context, question string, contextText string) (string, error) {
	ce.once.Do(ce.init)
	if ce.err != nil {
		return "", ce.err
	}

	prompt := fmt.Sprintf(ce.config.PromptTemplate, contextText, question)

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := ce.client.GenerateContent(ctx, content,
		llms.WithTemperature(0),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrModelFailure, err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", models.ErrModelFailure)
	}

	return response.Choices[0].Content, nil
}
