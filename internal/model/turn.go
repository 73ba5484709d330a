package model

import (
	"encoding/json"
	"time"
)

// Citation points an answer at its supporting source.
// Location is a decimal page number for pdf sources and a URL for web ones.
type Citation struct {
	DisplayName string `json:"display_name"`
	Location    string `json:"location"`
}

// ConversationTurn is one completed question/answer exchange. Turns are
// append-only: an aborted pipeline run writes nothing. TurnIndex is
// monotonic within a session and unique together with SessionID.
type ConversationTurn struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	SessionID         uint      `gorm:"not null;uniqueIndex:idx_session_turn" json:"session_id"`
	TurnIndex         int       `gorm:"not null;uniqueIndex:idx_session_turn" json:"turn_index"`
	UserUtterance     string    `gorm:"type:text;not null" json:"user_utterance"`
	StandaloneQuery   string    `gorm:"type:text;not null" json:"standalone_query"`
	RetrievedChunkIDs string    `gorm:"type:text" json:"-"` // JSON array, post-rerank order
	AnswerText        string    `gorm:"type:text;not null" json:"answer_text"`
	Citations         string    `gorm:"type:text" json:"-"` // JSON array of Citation
	CreatedAt         time.Time `json:"created_at"`
}

// ChunkIDList returns the reranked chunk ids; empty on parse error.
func (t *ConversationTurn) ChunkIDList() []string {
	if t.RetrievedChunkIDs == "" {
		return nil
	}
	var ids []string
	_ = json.Unmarshal([]byte(t.RetrievedChunkIDs), &ids)
	return ids
}

// SetChunkIDs stores the reranked chunk ids as JSON.
func (t *ConversationTurn) SetChunkIDs(ids []string) {
	if len(ids) == 0 {
		t.RetrievedChunkIDs = "[]"
		return
	}
	b, _ := json.Marshal(ids)
	t.RetrievedChunkIDs = string(b)
}

// CitationList returns the parsed citations; empty on parse error.
func (t *ConversationTurn) CitationList() []Citation {
	if t.Citations == "" {
		return nil
	}
	var cs []Citation
	_ = json.Unmarshal([]byte(t.Citations), &cs)
	return cs
}

// SetCitations stores the citations as JSON.
func (t *ConversationTurn) SetCitations(cs []Citation) {
	if len(cs) == 0 {
		t.Citations = "[]"
		return
	}
	b, _ := json.Marshal(cs)
	t.Citations = string(b)
}
