package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ragdesk/internal/ai"
	"ragdesk/internal/model"
)

// ChatCompleter is the chat-completion side of the model service.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

// defaultHistoryWindow caps how many recent turns feed the rewrite prompt
// and the answer prompt.
const defaultHistoryWindow = 6

const rewriteSystemPrompt = "Given a conversation and a follow-up question, rephrase the follow-up " +
	"into one standalone question that carries all context needed to answer it on its own. " +
	"Resolve pronouns and references against the conversation. Return only the rewritten question."

// Rewriter condenses a follow-up utterance plus recent history into one
// self-contained question. It runs before retrieval: the standalone query
// is what gets embedded and filtered, never the raw utterance.
type Rewriter struct {
	llm     ChatCompleter
	window  int
	timeout time.Duration
}

func NewRewriter(llm ChatCompleter, window int, timeout time.Duration) *Rewriter {
	if window <= 0 {
		window = defaultHistoryWindow
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Rewriter{llm: llm, window: window, timeout: timeout}
}

// Rewrite returns the standalone form of utterance. With no prior history
// there is nothing to resolve: the utterance is returned verbatim and no
// model call is made.
func (r *Rewriter) Rewrite(ctx context.Context, utterance string, history []model.ConversationTurn) (string, error) {
	utterance = strings.TrimSpace(utterance)
	if len(history) == 0 {
		return utterance, nil
	}
	if len(history) > r.window {
		history = history[len(history)-r.window:]
	}

	var sb strings.Builder
	sb.WriteString("Conversation so far:\n")
	for _, turn := range history {
		sb.WriteString("User: ")
		sb.WriteString(turn.UserUtterance)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(turn.AnswerText)
		sb.WriteString("\n")
	}
	sb.WriteString("\nFollow-up question: ")
	sb.WriteString(utterance)
	sb.WriteString("\n\nStandalone question:")

	messages := []ai.ChatMessage{
		{Role: "system", Content: rewriteSystemPrompt},
		{Role: "user", Content: sb.String()},
	}

	rewriteCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	out, err := r.llm.Complete(rewriteCtx, messages)
	if err != nil {
		return "", fmt.Errorf("rewrite query failed: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return utterance, nil
	}
	return out, nil
}
