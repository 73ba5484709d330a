package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ragdesk/internal/ai"
	"ragdesk/internal/index"
	"ragdesk/internal/model"
)

const answerSystemPrompt = "You are a helpful assistant. Answer the user's question based only on " +
	"the provided context. If the context does not contain enough information, say so. " +
	"Do not make up facts."

// LLMGenerator composes the final answer from the reranked chunks, the
// recent history and the standalone query.
type LLMGenerator struct {
	llm     ChatCompleter
	timeout time.Duration
}

func NewLLMGenerator(llm ChatCompleter, timeout time.Duration) *LLMGenerator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LLMGenerator{llm: llm, timeout: timeout}
}

func (g *LLMGenerator) Generate(ctx context.Context, standaloneQuery string, chunks []index.Result, history []model.ConversationTurn) (string, error) {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i := range chunks {
		c := &chunks[i]
		fmt.Fprintf(&sb, "---\n[Source: %s (%s)]\n%s\n", c.DisplayName, c.Location(), c.Content)
	}
	sb.WriteString("---\n\nQuestion: ")
	sb.WriteString(standaloneQuery)
	sb.WriteString("\n\nAnswer:")

	messages := make([]ai.ChatMessage, 0, 2*len(history)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: answerSystemPrompt})
	for _, turn := range history {
		messages = append(messages,
			ai.ChatMessage{Role: "user", Content: turn.UserUtterance},
			ai.ChatMessage{Role: "assistant", Content: turn.AnswerText},
		)
	}
	messages = append(messages, ai.ChatMessage{Role: "user", Content: sb.String()})

	generateCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	answer, err := g.llm.Complete(generateCtx, messages)
	if err != nil {
		return "", fmt.Errorf("generate answer failed: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("empty answer from model")
	}
	return answer, nil
}
