package drafts

import (
	"context"
	"sync"
	"time"

	"questionnaire_editor/editor"
)

// MemoryStore keeps drafts in process memory. Drafts do not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string]editor.Draft
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]editor.Draft)}
}

func (s *MemoryStore) Save(_ context.Context, d editor.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.SessionID] = d
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (editor.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[sessionID]
	if !ok {
		return editor.Draft{}, editor.ErrDraftNotFound
	}
	return d, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, sessionID)
	return nil
}

func (s *MemoryStore) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id, d := range s.drafts {
		if d.UpdatedAt.Before(before) {
			delete(s.drafts, id)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
