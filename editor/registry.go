package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"questionnaire_editor/models"
)

var (
	ErrSessionNotFound = errors.New("editor session not found")
	ErrForbidden       = errors.New("editor session belongs to another user")
	ErrDraftNotFound   = errors.New("draft not found")
)

// Draft is the persisted form of an editor session.
type Draft struct {
	SessionID string    `json:"session_id"`
	UserID    int       `json:"user_id"`
	Snapshot  Snapshot  `json:"snapshot"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DraftStore persists drafts so sessions survive a restart. Load returns
// ErrDraftNotFound for unknown ids.
type DraftStore interface {
	Save(ctx context.Context, d Draft) error
	Load(ctx context.Context, sessionID string) (Draft, error)
	Delete(ctx context.Context, sessionID string) error
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// UpdateListener is told about every questionnaire update that succeeded.
type UpdateListener interface {
	QuestionnaireUpdated(ctx context.Context, quizID string, userID int, update *models.QuestionnaireUpdate) error
}

type Session struct {
	ID     string
	UserID int
	Form   *Form

	mu        sync.Mutex
	navigated []string
	lastUsed  time.Time
}

// Navigations lists every route the form asked to move to.
func (s *Session) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigated...)
}

type SessionSummary struct {
	SessionID string    `json:"session_id"`
	QuizID    string    `json:"quiz_id"`
	Name      string    `json:"name"`
	Phase     Phase     `json:"phase"`
	LastUsed  time.Time `json:"last_used"`
}

type RegistryConfig struct {
	API      API
	Drafts   DraftStore
	Listener UpdateListener
	TTL      time.Duration
}

// Registry keeps the live editor sessions of this process.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	api      API
	drafts   DraftStore
	listener UpdateListener
	keys     *KeySource
	ttl      time.Duration
	now      func() time.Time
}

func NewRegistry(cfg RegistryConfig) *Registry {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Registry{
		sessions: make(map[string]*Session),
		api:      cfg.API,
		drafts:   cfg.Drafts,
		listener: cfg.Listener,
		keys:     &KeySource{},
		ttl:      ttl,
		now:      time.Now,
	}
}

func (r *Registry) newSession(id string, userID int, build func(Navigator) *Form) *Session {
	s := &Session{ID: id, UserID: userID, lastUsed: r.now()}
	s.Form = build(func(path string) {
		s.mu.Lock()
		s.navigated = append(s.navigated, path)
		s.mu.Unlock()
	})
	return s
}

// Open starts a session for the questionnaire and loads it. A failed load
// still yields a usable, empty session; the load error is returned alongside.
func (r *Registry) Open(ctx context.Context, userID int, quizID string) (*Session, error) {
	s := r.newSession(uuid.NewString(), userID, func(nav Navigator) *Form {
		return NewForm(quizID, r.api, r.keys, nav)
	})

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	loadErr := s.Form.Load(ctx)
	r.persist(ctx, s)
	return s, loadErr
}

// Get returns the caller's session, restoring it from its draft when this
// process does not hold it.
func (r *Registry) Get(ctx context.Context, userID int, sessionID string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	r.mu.Unlock()

	if !ok {
		restored, err := r.restore(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		s = restored
	}

	if s.UserID != userID {
		return nil, ErrForbidden
	}

	s.mu.Lock()
	expired := r.now().Sub(s.lastUsed) > r.ttl
	if !expired {
		s.lastUsed = r.now()
	}
	s.mu.Unlock()
	if expired {
		r.discard(ctx, s)
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) restore(ctx context.Context, sessionID string) (*Session, error) {
	if r.drafts == nil {
		return nil, ErrSessionNotFound
	}
	draft, err := r.drafts.Load(ctx, sessionID)
	if errors.Is(err, ErrDraftNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading draft %s: %w", sessionID, err)
	}

	s := r.newSession(draft.SessionID, draft.UserID, func(nav Navigator) *Form {
		return RestoreForm(draft.Snapshot, r.api, r.keys, nav)
	})
	s.lastUsed = draft.UpdatedAt

	r.mu.Lock()
	if existing, ok := r.sessions[sessionID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.sessions[sessionID] = s
	r.mu.Unlock()

	if s.Form.Phase() == PhaseLoading {
		if err := s.Form.Load(ctx); err != nil && !errors.Is(err, ErrStale) {
			log.Printf("Error reloading restored session %s: %v", sessionID, err)
		}
		r.persist(ctx, s)
	}
	return s, nil
}

// Edit runs fn against the session's form and saves the resulting draft.
func (r *Registry) Edit(ctx context.Context, userID int, sessionID string, fn func(*Form) error) (*Session, error) {
	s, err := r.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(s.Form); err != nil {
		return s, err
	}
	r.persist(ctx, s)
	return s, nil
}

// Submit sends the session's form. On success the session ends and the route
// the form navigated to is returned.
func (r *Registry) Submit(ctx context.Context, userID int, sessionID string) (string, *Session, error) {
	s, err := r.Get(ctx, userID, sessionID)
	if err != nil {
		return "", nil, err
	}

	update, err := s.Form.Submit(ctx)
	switch {
	case errors.Is(err, ErrStale) && update != nil:
		// Closed while the request was in flight, but the API accepted it.
		log.Printf("Questionnaire %s updated after session %s was closed", s.Form.QuizID(), s.ID)
	case err != nil:
		if !errors.Is(err, ErrSubmitInProgress) && !errors.Is(err, ErrStale) {
			r.persist(ctx, s)
		}
		return "", s, err
	}

	if r.listener != nil {
		if err := r.listener.QuestionnaireUpdated(ctx, s.Form.QuizID(), userID, update); err != nil {
			log.Printf("Error publishing update of questionnaire %s: %v", s.Form.QuizID(), err)
		}
	}
	r.discard(ctx, s)

	navigated := s.Navigations()
	if len(navigated) == 0 {
		return RootPath, s, nil
	}
	return navigated[len(navigated)-1], s, nil
}

// Close ends a session without submitting it.
func (r *Registry) Close(ctx context.Context, userID int, sessionID string) error {
	s, err := r.Get(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	r.discard(ctx, s)
	return nil
}

func (r *Registry) List(userID int) []SessionSummary {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.UserID == userID {
			sessions = append(sessions, s)
		}
	}
	r.mu.Unlock()

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		snap := s.Form.Snapshot()
		s.mu.Lock()
		lastUsed := s.lastUsed
		s.mu.Unlock()
		summaries = append(summaries, SessionSummary{
			SessionID: s.ID,
			QuizID:    snap.QuizID,
			Name:      snap.Name,
			Phase:     snap.Phase,
			LastUsed:  lastUsed,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastUsed.After(summaries[j].LastUsed)
	})
	return summaries
}

// Sweep closes sessions idle for longer than the TTL and purges their drafts.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var idle []*Session
	for _, s := range r.sessions {
		s.mu.Lock()
		if s.lastUsed.Before(cutoff) {
			idle = append(idle, s)
		}
		s.mu.Unlock()
	}
	r.mu.Unlock()

	for _, s := range idle {
		r.discard(ctx, s)
	}

	if r.drafts != nil {
		if _, err := r.drafts.Purge(ctx, cutoff); err != nil {
			log.Printf("Error purging expired drafts: %v", err)
		}
	}
	return len(idle)
}

// StartJanitor sweeps expired sessions every interval until ctx is done.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(ctx); n > 0 {
					log.Printf("Expired %d idle editor sessions", n)
				}
			}
		}
	}()
}

func (r *Registry) discard(ctx context.Context, s *Session) {
	s.Form.Close()

	r.mu.Lock()
	delete(r.sessions, s.ID)
	r.mu.Unlock()

	if r.drafts == nil {
		return
	}
	if err := r.drafts.Delete(ctx, s.ID); err != nil {
		log.Printf("Error deleting draft %s: %v", s.ID, err)
	}
}

// persist saves the session's draft unless the session has already ended.
func (r *Registry) persist(ctx context.Context, s *Session) {
	if r.drafts == nil || s.Form.Phase() == PhaseClosed {
		return
	}
	r.mu.Lock()
	_, live := r.sessions[s.ID]
	r.mu.Unlock()
	if !live {
		return
	}
	draft := Draft{
		SessionID: s.ID,
		UserID:    s.UserID,
		Snapshot:  s.Form.Snapshot(),
		UpdatedAt: r.now(),
	}
	if err := r.drafts.Save(ctx, draft); err != nil {
		log.Printf("Error saving draft %s: %v", s.ID, err)
	}
}
