package memory

import (
	"context"
	"sync"

	"github.com/suPer8Hu/mood-chat/internal/chat"
)

// TranscriptStore keeps transcripts in process memory. Contents are lost on
// restart; useful for development and single-instance deployments.
type TranscriptStore struct {
	mu         sync.RWMutex
	sessions   map[string][]chat.Entry
	maxEntries int
}

func NewTranscriptStore(maxEntries int) *TranscriptStore {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &TranscriptStore{sessions: make(map[string][]chat.Entry), maxEntries: maxEntries}
}

func (s *TranscriptStore) Append(ctx context.Context, sessionID string, e chat.Entry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.sessions[sessionID], e)
	if s.maxEntries > 0 && len(entries) > s.maxEntries {
		entries = append([]chat.Entry(nil), entries[len(entries)-s.maxEntries:]...)
	}
	s.sessions[sessionID] = entries
	return nil
}

func (s *TranscriptStore) All(ctx context.Context, sessionID string) ([]chat.Entry, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.Entry{}, s.sessions[sessionID]...), nil
}

func (s *TranscriptStore) Clear(ctx context.Context, sessionID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
