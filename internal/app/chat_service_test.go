package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/internal/index"
	"ragdesk/internal/model"
)

// mockSessionStore implements SessionStore for testing.
type mockSessionStore struct {
	session *model.ChatSession
	created *model.ChatSession
	title   string
}

func (m *mockSessionStore) Create(session *model.ChatSession) error {
	session.ID = 1
	m.created = session
	return nil
}

func (m *mockSessionStore) GetByIDAndUserID(id, userID uint) (*model.ChatSession, error) {
	if m.session != nil && m.session.ID == id && m.session.UserID == userID {
		return m.session, nil
	}
	return nil, nil
}

func (m *mockSessionStore) ListByUserID(_ uint) ([]model.ChatSession, error) {
	if m.session == nil {
		return nil, nil
	}
	return []model.ChatSession{*m.session}, nil
}

func (m *mockSessionStore) UpdateTitle(_ uint, title string) error {
	m.title = title
	return nil
}

// mockTurnStore implements TurnStore for testing.
type mockTurnStore struct {
	appended  []*model.ConversationTurn
	recent    []model.ConversationTurn
	nextIndex int
	appendErr error
}

func (m *mockTurnStore) Append(turn *model.ConversationTurn) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	turn.TurnIndex = m.nextIndex
	m.nextIndex++
	m.appended = append(m.appended, turn)
	return nil
}

func (m *mockTurnStore) ListBySessionID(_ uint, _ int) ([]model.ConversationTurn, error) {
	return m.recent, nil
}

func (m *mockTurnStore) ListRecent(_ uint, _ int) ([]model.ConversationTurn, error) {
	return m.recent, nil
}

// mockTurnCache implements TurnCache for testing.
type mockTurnCache struct {
	history  []model.ConversationTurn
	hit      bool
	stored   []model.ConversationTurn
	setCalls int
	getErr   error
}

func (m *mockTurnCache) GetHistory(_ context.Context, _ uint) ([]model.ConversationTurn, bool, error) {
	return m.history, m.hit, m.getErr
}

func (m *mockTurnCache) SetHistory(_ context.Context, _ uint, turns []model.ConversationTurn) error {
	m.setCalls++
	m.stored = turns
	return nil
}

// mockQueryRewriter implements QueryRewriter for testing.
type mockQueryRewriter struct {
	out          string
	err          error
	calls        int
	gotUtterance string
	gotHistory   []model.ConversationTurn
}

func (m *mockQueryRewriter) Rewrite(_ context.Context, utterance string, history []model.ConversationTurn) (string, error) {
	m.calls++
	m.gotUtterance = utterance
	m.gotHistory = history
	if m.err != nil {
		return "", m.err
	}
	if m.out == "" {
		return utterance, nil
	}
	return m.out, nil
}

// mockChunkRetriever implements ChunkRetriever for testing.
type mockChunkRetriever struct {
	results  []index.Result
	err      error
	calls    int
	gotQuery string
	gotRole  model.Role
	gotK     int
}

func (m *mockChunkRetriever) Retrieve(_ context.Context, queryText string, role model.Role, k int) ([]index.Result, error) {
	m.calls++
	m.gotQuery = queryText
	m.gotRole = role
	m.gotK = k
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// mockChunkReranker implements ChunkReranker for testing.
type mockChunkReranker struct {
	out      []index.Result
	degraded bool
	calls    int
	gotQuery string
	gotN     int
}

func (m *mockChunkReranker) Rerank(_ context.Context, query string, candidates []index.Result, n int) ([]index.Result, bool) {
	m.calls++
	m.gotQuery = query
	m.gotN = n
	if m.out != nil {
		return m.out, m.degraded
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	return candidates[:n], m.degraded
}

// mockAnswerGenerator implements AnswerGenerator for testing.
type mockAnswerGenerator struct {
	answer     string
	err        error
	calls      int
	gotQuery   string
	gotChunks  []index.Result
	gotHistory []model.ConversationTurn
}

func (m *mockAnswerGenerator) Generate(_ context.Context, query string, chunks []index.Result, history []model.ConversationTurn) (string, error) {
	m.calls++
	m.gotQuery = query
	m.gotChunks = chunks
	m.gotHistory = history
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

type chatFixture struct {
	sessions  *mockSessionStore
	turns     *mockTurnStore
	cache     *mockTurnCache
	rewriter  *mockQueryRewriter
	retriever *mockChunkRetriever
	reranker  *mockChunkReranker
	generator *mockAnswerGenerator
	service   *ChatService
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		sessions:  &mockSessionStore{session: &model.ChatSession{ID: 1, UserID: 7, Title: defaultSessionTitle}},
		turns:     &mockTurnStore{},
		cache:     &mockTurnCache{hit: true},
		rewriter:  &mockQueryRewriter{},
		retriever: &mockChunkRetriever{},
		reranker:  &mockChunkReranker{},
		generator: &mockAnswerGenerator{answer: "generated answer"},
	}
	f.service = NewChatService(
		f.sessions, f.turns, f.cache,
		f.rewriter, f.retriever, f.reranker, f.generator,
		6, 10, 4,
	)
	return f
}

func pdfResults(n int) []index.Result {
	out := make([]index.Result, n)
	for i := range out {
		out[i] = index.Result{
			ChunkID:     string(rune('a' + i)),
			DocumentID:  "doc-1",
			SourceType:  model.SourcePDF,
			DisplayName: "Handbook",
			Page:        i + 1,
			Content:     "chunk content",
		}
	}
	return out
}

func TestChatService_Ask_EmptyUtterance(t *testing.T) {
	f := newChatFixture()

	_, err := f.service.Ask(context.Background(), AskInput{UserID: 7, SessionID: 1, Role: model.RoleFullAccess, Utterance: "   "})
	assert.ErrorIs(t, err, ErrUtteranceEmpty)
}

func TestChatService_Ask_UnknownRoleRejectedUpFront(t *testing.T) {
	f := newChatFixture()

	_, err := f.service.Ask(context.Background(), AskInput{UserID: 7, SessionID: 1, Role: "root", Utterance: "hello"})
	assert.ErrorIs(t, err, model.ErrUnknownRole)
	assert.Zero(t, f.rewriter.calls, "no model call before the role check")
}

func TestChatService_Ask_SessionNotOwned(t *testing.T) {
	f := newChatFixture()

	_, err := f.service.Ask(context.Background(), AskInput{UserID: 99, SessionID: 1, Role: model.RoleFullAccess, Utterance: "hello"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChatService_Ask_PipelineFlow(t *testing.T) {
	f := newChatFixture()
	f.cache.history = []model.ConversationTurn{
		{UserUtterance: "tell me about annual plans", AnswerText: "They bill yearly."},
	}
	f.rewriter.out = "What is the refund window for annual plans?"
	f.retriever.results = pdfResults(6)

	result, err := f.service.Ask(context.Background(), AskInput{
		UserID: 7, SessionID: 1, Role: model.RolePDFOnly, Utterance: " and the refund window? ",
	})
	require.NoError(t, err)

	// The rewriter sees the raw utterance plus history; everything after it
	// sees only the standalone query.
	assert.Equal(t, "and the refund window?", f.rewriter.gotUtterance)
	require.Len(t, f.rewriter.gotHistory, 1)
	assert.Equal(t, "What is the refund window for annual plans?", f.retriever.gotQuery)
	assert.Equal(t, model.RolePDFOnly, f.retriever.gotRole)
	assert.Equal(t, 10, f.retriever.gotK)
	assert.Equal(t, "What is the refund window for annual plans?", f.reranker.gotQuery)
	assert.Equal(t, 4, f.reranker.gotN)
	require.Equal(t, 1, f.generator.calls)
	assert.Len(t, f.generator.gotChunks, 4)

	assert.Equal(t, "generated answer", result.Answer)
	require.Len(t, result.Citations, 4)
	assert.Equal(t, model.Citation{DisplayName: "Handbook", Location: "1"}, result.Citations[0])

	require.Len(t, f.turns.appended, 1)
	turn := f.turns.appended[0]
	assert.Equal(t, "and the refund window?", turn.UserUtterance)
	assert.Equal(t, "What is the refund window for annual plans?", turn.StandaloneQuery)
	assert.Equal(t, "generated answer", turn.AnswerText)
	assert.Equal(t, []string{"a", "b", "c", "d"}, turn.ChunkIDList())
	assert.Len(t, turn.CitationList(), 4)

	// Cache refreshed with the new turn appended.
	require.NotEmpty(t, f.cache.stored)
	last := f.cache.stored[len(f.cache.stored)-1]
	assert.Equal(t, "and the refund window?", last.UserUtterance)
}

func TestChatService_Ask_FirstTurnSetsTitle(t *testing.T) {
	f := newChatFixture()
	f.retriever.results = pdfResults(1)

	long := strings.Repeat("x", 60)
	_, err := f.service.Ask(context.Background(), AskInput{UserID: 7, SessionID: 1, Role: model.RoleFullAccess, Utterance: long})
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat("x", 50)+"...", f.sessions.title)
}

func TestChatService_Ask_LaterTurnsKeepTitle(t *testing.T) {
	f := newChatFixture()
	f.retriever.results = pdfResults(1)
	f.turns.nextIndex = 3

	_, err := f.service.Ask(context.Background(), AskInput{UserID: 7, SessionID: 1, Role: model.RoleFullAccess, Utterance: "hello"})
	require.NoError(t, err)
	assert.Empty(t, f.sessions.title)
}

func TestChatService_Ask_EmptyRetrievalStillPersists(t *testing.T) {
	f := newChatFixture()
	f.retriever.results = nil

	result, err := f.service.Ask(context.Background(), AskInput{UserID: 7, SessionID: 1, Role: model.RoleWebOnly, Utterance: "anything about yaks?"})
	require.NoError(t, err)

	assert.Equal(t, emptyResultAnswer, result.Answer)
	assert.Empty(t, result.Citations)
	assert.Zero(t, f.reranker.calls, "nothing to rerank")
	assert.Zero(t, f.generator.calls, "no generation without context")

	require.Len(t, f.turns.appended, 1, "an empty result is a normal completed turn")
	assert.Equal(t, emptyResultAnswer, f.turns.appended[0].AnswerText)
}

func TestChatService_Ask_RewriteFailureAborts(t *testing.T) {
	f := newChatFixture()
	f.rewriter.err = errors.New("model timeout")

	_, err := f.service.Ask(context.Background(), AskInput{UserID: 7, SessionID: 1, Role: model.RoleFullAccess, Utterance: "hello"})
	assert.ErrorIs(t, err, ErrTurnAborted)
	assert.Zero(t, f.retriever.calls)
	assert.Empty(t, f.turns.appended, "aborted turns are never persisted")
}

func TestChatService_Ask_GenerationFailureAborts(t *testing.T) {
	f := newChatFixture()
	f.retriever.results = pdfResults(2)
	f.generator.err = errors.New("model overloaded")

	_, err := f.service.Ask(context.Background(), AskInput{UserID: 7, SessionID: 1, Role: model.RoleFullAccess, Utterance: "hello"})
	assert.ErrorIs(t, err, ErrTurnAborted)
	assert.Empty(t, f.turns.appended)
}

func TestChatService_Ask_PersistFailureAborts(t *testing.T) {
	f := newChatFixture()
	f.retriever.results = pdfResults(2)
	f.turns.appendErr = errors.New("db down")

	_, err := f.service.Ask(context.Background(), AskInput{UserID: 7, SessionID: 1, Role: model.RoleFullAccess, Utterance: "hello"})
	assert.ErrorIs(t, err, ErrTurnAborted)
	assert.Zero(t, f.cache.setCalls, "cache must not be refreshed for an unpersisted turn")
}

func TestChatService_Ask_CacheMissFallsBackToStore(t *testing.T) {
	f := newChatFixture()
	f.cache.hit = false
	f.turns.recent = []model.ConversationTurn{
		{UserUtterance: "earlier question", AnswerText: "earlier answer"},
	}
	f.turns.nextIndex = 1
	f.retriever.results = pdfResults(1)

	_, err := f.service.Ask(context.Background(), AskInput{UserID: 7, SessionID: 1, Role: model.RoleFullAccess, Utterance: "follow-up"})
	require.NoError(t, err)

	require.Len(t, f.rewriter.gotHistory, 1)
	assert.Equal(t, "earlier question", f.rewriter.gotHistory[0].UserUtterance)
	assert.Equal(t, 2, f.cache.setCalls, "warm on miss, refresh after the turn")
}

func TestChatService_Ask_CitationsDeduplicated(t *testing.T) {
	f := newChatFixture()
	f.retriever.results = []index.Result{
		{ChunkID: "a", SourceType: model.SourcePDF, DisplayName: "Handbook", Page: 3},
		{ChunkID: "b", SourceType: model.SourcePDF, DisplayName: "Handbook", Page: 3},
		{ChunkID: "c", SourceType: model.SourceWeb, DisplayName: "FAQ", URL: "https://example.com/faq"},
	}

	result, err := f.service.Ask(context.Background(), AskInput{UserID: 7, SessionID: 1, Role: model.RoleFullAccess, Utterance: "hello"})
	require.NoError(t, err)

	require.Len(t, result.Citations, 2)
	assert.Equal(t, model.Citation{DisplayName: "Handbook", Location: "3"}, result.Citations[0])
	assert.Equal(t, model.Citation{DisplayName: "FAQ", Location: "https://example.com/faq"}, result.Citations[1])
}

func TestChatService_Ask_DegradedRerankStillAnswers(t *testing.T) {
	f := newChatFixture()
	f.retriever.results = pdfResults(5)
	f.reranker.degraded = true

	result, err := f.service.Ask(context.Background(), AskInput{UserID: 7, SessionID: 1, Role: model.RoleFullAccess, Utterance: "hello"})
	require.NoError(t, err, "rerank degradation is invisible to the caller")
	assert.Equal(t, "generated answer", result.Answer)
}

func TestChatService_CreateSession_DefaultTitle(t *testing.T) {
	f := newChatFixture()

	session, err := f.service.CreateSession(7, "   ")
	require.NoError(t, err)
	assert.Equal(t, defaultSessionTitle, session.Title)

	session, err = f.service.CreateSession(7, "Billing questions")
	require.NoError(t, err)
	assert.Equal(t, "Billing questions", session.Title)
}

func TestChatService_ListTurns_ChecksOwnership(t *testing.T) {
	f := newChatFixture()
	f.turns.recent = []model.ConversationTurn{{UserUtterance: "q"}}

	turns, err := f.service.ListTurns(7, 1, 0)
	require.NoError(t, err)
	assert.Len(t, turns, 1)

	_, err = f.service.ListTurns(99, 1, 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
