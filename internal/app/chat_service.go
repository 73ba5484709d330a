package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"ragdesk/internal/index"
	"ragdesk/internal/model"
)

const (
	defaultSessionTitle = "New Chat"
	sessionTitleLimit   = 50

	// Returned verbatim when retrieval finds nothing the caller may see.
	emptyResultAnswer = "I could not find anything relevant in the sources available to you."
)

var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrUtteranceEmpty  = errors.New("utterance is empty")
	ErrTurnAborted     = errors.New("turn aborted")
)

type SessionStore interface {
	Create(session *model.ChatSession) error
	GetByIDAndUserID(id, userID uint) (*model.ChatSession, error)
	ListByUserID(userID uint) ([]model.ChatSession, error)
	UpdateTitle(id uint, title string) error
}

type TurnStore interface {
	Append(turn *model.ConversationTurn) error
	ListBySessionID(sessionID uint, limit int) ([]model.ConversationTurn, error)
	ListRecent(sessionID uint, n int) ([]model.ConversationTurn, error)
}

// TurnCache keeps the recent turns of hot sessions out of the database.
type TurnCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.ConversationTurn, bool, error)
	SetHistory(ctx context.Context, sessionID uint, turns []model.ConversationTurn) error
}

type QueryRewriter interface {
	Rewrite(ctx context.Context, utterance string, history []model.ConversationTurn) (string, error)
}

type ChunkRetriever interface {
	Retrieve(ctx context.Context, queryText string, role model.Role, k int) ([]index.Result, error)
}

type ChunkReranker interface {
	Rerank(ctx context.Context, query string, candidates []index.Result, n int) ([]index.Result, bool)
}

type AnswerGenerator interface {
	Generate(ctx context.Context, query string, chunks []index.Result, history []model.ConversationTurn) (string, error)
}

// ChatService drives a conversational turn through its stages: rewrite the
// utterance into a standalone query, retrieve candidates the caller's role
// may see, rerank, generate and persist. A turn that fails mid-pipeline is
// never persisted.
type ChatService struct {
	sessions      SessionStore
	turns         TurnStore
	cache         TurnCache
	rewriter      QueryRewriter
	retriever     ChunkRetriever
	reranker      ChunkReranker
	generator     AnswerGenerator
	historyWindow int
	topK          int
	rerankTopN    int
}

func NewChatService(
	sessions SessionStore,
	turns TurnStore,
	cache TurnCache,
	rewriter QueryRewriter,
	retriever ChunkRetriever,
	reranker ChunkReranker,
	generator AnswerGenerator,
	historyWindow int,
	topK int,
	rerankTopN int,
) *ChatService {
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	if topK <= 0 {
		topK = 10
	}
	if rerankTopN <= 0 {
		rerankTopN = 4
	}
	return &ChatService{
		sessions:      sessions,
		turns:         turns,
		cache:         cache,
		rewriter:      rewriter,
		retriever:     retriever,
		reranker:      reranker,
		generator:     generator,
		historyWindow: historyWindow,
		topK:          topK,
		rerankTopN:    rerankTopN,
	}
}

type AskInput struct {
	UserID    uint
	SessionID uint
	Role      model.Role
	Utterance string
}

type AskResult struct {
	Answer    string
	Citations []model.Citation
	Turn      *model.ConversationTurn
}

// Ask answers one user utterance within a session.
func (s *ChatService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	utterance := strings.TrimSpace(input.Utterance)
	if utterance == "" {
		return nil, ErrUtteranceEmpty
	}
	// Reject unknown roles before any model call is spent on the turn.
	if _, err := AllowedSourceTypes(input.Role); err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByIDAndUserID(input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	history := s.loadHistory(ctx, session.ID)

	standalone, err := s.rewriter.Rewrite(ctx, utterance, history)
	if err != nil {
		log.Printf("rewrite utterance for session %d failed: %v", session.ID, err)
		return nil, ErrTurnAborted
	}

	candidates, err := s.retriever.Retrieve(ctx, standalone, input.Role, s.topK)
	if err != nil {
		if errors.Is(err, model.ErrUnknownRole) {
			return nil, err
		}
		log.Printf("retrieve for session %d failed: %v", session.ID, err)
		return nil, ErrTurnAborted
	}

	var (
		selected  []index.Result
		answer    string
		citations []model.Citation
	)
	if len(candidates) == 0 {
		answer = emptyResultAnswer
		citations = []model.Citation{}
	} else {
		selected, _ = s.reranker.Rerank(ctx, standalone, candidates, s.rerankTopN)
		answer, err = s.generator.Generate(ctx, standalone, selected, history)
		if err != nil {
			log.Printf("generate answer for session %d failed: %v", session.ID, err)
			return nil, ErrTurnAborted
		}
		citations = citationsFrom(selected)
	}

	turn := &model.ConversationTurn{
		SessionID:       session.ID,
		UserUtterance:   utterance,
		StandaloneQuery: standalone,
		AnswerText:      answer,
	}
	turn.SetChunkIDs(chunkIDs(selected))
	turn.SetCitations(citations)
	if err := s.turns.Append(turn); err != nil {
		log.Printf("persist turn for session %d failed: %v", session.ID, err)
		return nil, ErrTurnAborted
	}

	if turn.TurnIndex == 0 {
		if err := s.sessions.UpdateTitle(session.ID, truncateTitle(utterance)); err != nil {
			log.Printf("update title for session %d failed: %v", session.ID, err)
		}
	}

	history = append(history, *turn)
	if len(history) > s.historyWindow {
		history = history[len(history)-s.historyWindow:]
	}
	if err := s.cache.SetHistory(ctx, session.ID, history); err != nil {
		log.Printf("refresh history cache for session %d failed: %v", session.ID, err)
	}

	return &AskResult{Answer: answer, Citations: citations, Turn: turn}, nil
}

func (s *ChatService) CreateSession(userID uint, title string) (*model.ChatSession, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultSessionTitle
	}
	session := &model.ChatSession{UserID: userID, Title: title}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(userID uint) ([]model.ChatSession, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessions.ListByUserID(userID)
}

func (s *ChatService) ListTurns(userID, sessionID uint, limit int) ([]model.ConversationTurn, error) {
	session, err := s.sessions.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return s.turns.ListBySessionID(sessionID, limit)
}

// loadHistory reads the recent turns, preferring the cache and falling back
// to the store. History is advisory: a failed read degrades to an empty
// window rather than failing the turn.
func (s *ChatService) loadHistory(ctx context.Context, sessionID uint) []model.ConversationTurn {
	history, hit, err := s.cache.GetHistory(ctx, sessionID)
	if err != nil {
		log.Printf("read history cache for session %d failed: %v", sessionID, err)
	} else if hit {
		return history
	}

	turns, err := s.turns.ListRecent(sessionID, s.historyWindow)
	if err != nil {
		log.Printf("load history for session %d failed: %v", sessionID, err)
		return nil
	}
	if err := s.cache.SetHistory(ctx, sessionID, turns); err != nil {
		log.Printf("warm history cache for session %d failed: %v", sessionID, err)
	}
	return turns
}

// citationsFrom collapses the selected chunks into citations, deduplicated
// by display name and location, in rerank order.
func citationsFrom(chunks []index.Result) []model.Citation {
	citations := make([]model.Citation, 0, len(chunks))
	seen := make(map[model.Citation]struct{}, len(chunks))
	for _, c := range chunks {
		cit := model.Citation{DisplayName: c.DisplayName, Location: c.Location()}
		if _, ok := seen[cit]; ok {
			continue
		}
		seen[cit] = struct{}{}
		citations = append(citations, cit)
	}
	return citations
}

func chunkIDs(chunks []index.Result) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ChunkID
	}
	return ids
}

func truncateTitle(utterance string) string {
	runes := []rune(utterance)
	if len(runes) <= sessionTitleLimit {
		return utterance
	}
	return string(runes[:sessionTitleLimit]) + "..."
}
