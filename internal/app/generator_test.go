package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/internal/ai"
	"ragdesk/internal/index"
	"ragdesk/internal/model"
)

func TestGenerator_PromptCarriesChunksWithProvenance(t *testing.T) {
	completer := &mockCompleter{reply: "Vacation is 20 days."}
	gen := NewLLMGenerator(completer, 0)

	chunks := []index.Result{
		{DisplayName: "Employee Handbook", SourceType: model.SourcePDF, Page: 12, Content: "Vacation allowance is 20 days."},
		{DisplayName: "Benefits FAQ", SourceType: model.SourceWeb, URL: "https://intranet.example.com/faq", Content: "Unused days expire in March."},
	}

	answer, err := gen.Generate(context.Background(), "how many vacation days do I get", chunks, nil)
	require.NoError(t, err)
	assert.Equal(t, "Vacation is 20 days.", answer)

	require.Len(t, completer.messages, 2)
	assert.Equal(t, "system", completer.messages[0].Role)

	prompt := completer.messages[1].Content
	assert.Contains(t, prompt, "[Source: Employee Handbook (12)]")
	assert.Contains(t, prompt, "Vacation allowance is 20 days.")
	assert.Contains(t, prompt, "[Source: Benefits FAQ (https://intranet.example.com/faq)]")
	assert.Contains(t, prompt, "Question: how many vacation days do I get")
}

func TestGenerator_HistoryBecomesChatTurns(t *testing.T) {
	completer := &mockCompleter{reply: "Yes, it carries over."}
	gen := NewLLMGenerator(completer, 0)

	history := []model.ConversationTurn{
		{UserUtterance: "what is the vacation policy", AnswerText: "You get 20 days."},
		{UserUtterance: "does it carry over", AnswerText: "Up to 5 days."},
	}

	_, err := gen.Generate(context.Background(), "and for part-time staff", nil, history)
	require.NoError(t, err)

	require.Len(t, completer.messages, 6)
	assert.Equal(t, []ai.ChatMessage{
		completer.messages[0],
		{Role: "user", Content: "what is the vacation policy"},
		{Role: "assistant", Content: "You get 20 days."},
		{Role: "user", Content: "does it carry over"},
		{Role: "assistant", Content: "Up to 5 days."},
		completer.messages[5],
	}, completer.messages)
}

func TestGenerator_EmptyAnswerIsAnError(t *testing.T) {
	gen := NewLLMGenerator(&mockCompleter{reply: "   "}, 0)

	_, err := gen.Generate(context.Background(), "question", nil, nil)
	assert.ErrorContains(t, err, "empty answer")
}

func TestGenerator_ModelError(t *testing.T) {
	gen := NewLLMGenerator(&mockCompleter{err: errors.New("upstream 500")}, 0)

	_, err := gen.Generate(context.Background(), "question", nil, nil)
	assert.ErrorContains(t, err, "generate answer failed")
}
