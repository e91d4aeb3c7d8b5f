package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/dkoval/ragbox/internal/models"
	"github.com/dkoval/ragbox/pkg/llm"
)

// stubModel records the prompt it was given and returns a canned answer.
type stubModel struct {
	lastMessages []llms.MessageContent
	answer       string
	err          error
}

func (s *stubModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	s.lastMessages = messages
	if s.err != nil {
		return nil, s.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: s.answer}},
	}, nil
}

func (s *stubModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	resp, err := s.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, opts...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func promptText(messages []llms.MessageContent) string {
	var out string
	for _, m := range messages {
		for _, part := range m.Parts {
			if text, ok := part.(llms.TextContent); ok {
				out += text.Text + "\n"
			}
		}
	}
	return out
}

func TestAnswer_PromptContainsContextAndQuestion(t *testing.T) {
	stub := &stubModel{answer: "X is Y."}
	engine := llm.NewWithModel(llm.ChatConfig{}, stub)

	answer, err := engine.Answer(context.Background(), "what is X", "X is Y.\n\nUnrelated chunk.")
	require.NoError(t, err)
	assert.Equal(t, "X is Y.", answer)

	prompt := promptText(stub.lastMessages)
	assert.Contains(t, prompt, "Answer based on context:")
	assert.Contains(t, prompt, "X is Y.")
	assert.Contains(t, prompt, "Question: what is X")
}

func TestAnswer_ModelFailureSurfaced(t *testing.T) {
	stub := &stubModel{err: errors.New("upstream down")}
	engine := llm.NewWithModel(llm.ChatConfig{}, stub)

	_, err := engine.Answer(context.Background(), "q", "ctx")
	assert.True(t, errors.Is(err, models.ErrModelFailure))
}

func TestAnswer_ReturnsModelOutputVerbatim(t *testing.T) {
	stub := &stubModel{answer: ""}
	engine := llm.NewWithModel(llm.ChatConfig{}, stub)

	answer, err := engine.Answer(context.Background(), "q", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "", answer)
}
