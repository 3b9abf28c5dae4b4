package editor

// Snapshot is a point-in-time copy of a form, used for rendering and for
// persisting drafts.
type Snapshot struct {
	QuizID      string     `json:"quiz_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
	Phase       Phase      `json:"phase"`
	Submitting  bool       `json:"submitting"`
	Status      Status     `json:"status"`
}

func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		QuizID:      f.quizID,
		Name:        f.name,
		Description: f.description,
		Questions:   cloneQuestions(f.questions),
		Phase:       f.phase,
		Submitting:  f.submitting,
		Status:      f.status,
	}
}

// RestoreForm rebuilds a form from a snapshot. A snapshot taken while loading
// comes back in the loading phase and needs Load; the submitting flag is not
// restored because the request it described no longer exists.
func RestoreForm(s Snapshot, api API, keys *KeySource, navigate Navigator) *Form {
	f := NewForm(s.QuizID, api, keys, navigate)
	for _, q := range s.Questions {
		f.keys.Observe(q.Key)
	}
	f.name = s.Name
	f.description = s.Description
	f.questions = cloneQuestions(s.Questions)
	for i := range f.questions {
		if id := f.questions[i].ID; id != nil && *id <= 0 {
			f.questions[i].ID = nil
		}
	}
	f.status = s.Status
	if s.Phase == PhaseReady || s.Phase == PhaseClosed {
		f.phase = s.Phase
	}
	return f
}
