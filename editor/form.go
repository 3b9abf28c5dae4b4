package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"questionnaire_editor/models"
)

var (
	ErrNotReady         = errors.New("form is not ready for editing")
	ErrSubmitInProgress = errors.New("an update is already in progress")
	ErrInvalid          = errors.New("questionnaire is invalid")
	ErrUnknownField     = errors.New("unknown question field")
	ErrInvalidType      = errors.New("invalid question type")
	ErrStale            = errors.New("response belongs to a superseded request")
)

type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseClosed  Phase = "closed"
)

type QuestionType string

const (
	TypeText     QuestionType = "text"
	TypeSingle   QuestionType = "single"
	TypeMultiple QuestionType = "multiple"
)

func ParseQuestionType(s string) (QuestionType, error) {
	switch t := QuestionType(s); t {
	case TypeText, TypeSingle, TypeMultiple:
		return t, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidType, s)
}

// Field names accepted by UpdateQuestion.
type Field string

const (
	FieldQuestion Field = "question"
	FieldType     Field = "type"
)

// Option is a selectable choice. ID is nil until the server has stored it.
type Option struct {
	ID   *int64 `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	Key     int64        `json:"key"`
	ID      *int64       `json:"id"`
	Prompt  string       `json:"question"`
	Type    QuestionType `json:"type"`
	Options []Option     `json:"options"`
}

func (q Question) Persisted() bool { return q.ID != nil }

type StatusLevel string

const (
	StatusNone  StatusLevel = ""
	StatusInfo  StatusLevel = "info"
	StatusError StatusLevel = "error"
)

// Status is the message shown to the user after a load or submit settles.
type Status struct {
	Level   StatusLevel `json:"level,omitempty"`
	Message string      `json:"message,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

type Fetcher interface {
	GetQuestionnaire(ctx context.Context, id string) (*models.Questionnaire, error)
}

type Updater interface {
	UpdateQuestionnaire(ctx context.Context, id string, update *models.QuestionnaireUpdate) error
}

type API interface {
	Fetcher
	Updater
}

// Navigator moves the user to another route once the form is done.
type Navigator func(path string)

// RootPath is where the user lands after a successful update.
const RootPath = "/"

// Form holds the editable copy of one questionnaire.
type Form struct {
	mu sync.Mutex

	api      API
	keys     *KeySource
	navigate Navigator

	quizID      string
	name        string
	description string
	questions   []Question
	phase       Phase
	submitting  bool
	status      Status

	generation uint64
	cancel     context.CancelFunc
}

func NewForm(quizID string, api API, keys *KeySource, navigate Navigator) *Form {
	if keys == nil {
		keys = &KeySource{}
	}
	return &Form{
		api:       api,
		keys:      keys,
		navigate:  navigate,
		quizID:    quizID,
		questions: []Question{},
		phase:     PhaseLoading,
	}
}

// Load fetches the questionnaire and fills the form. The form becomes ready
// whether or not the fetch succeeds; on failure it stays empty and the status
// carries the error.
func (f *Form) Load(ctx context.Context) error {
	f.mu.Lock()
	if f.phase == PhaseClosed {
		f.mu.Unlock()
		return ErrNotReady
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.generation++
	gen := f.generation
	quizID := f.quizID
	f.resetLocked()
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	quiz, err := f.api.GetQuestionnaire(ctx, quizID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation || f.phase != PhaseLoading {
		return ErrStale
	}
	f.cancel = nil
	f.phase = PhaseReady

	if err != nil {
		log.Printf("Error loading questionnaire %s: %v", quizID, err)
		f.status = Status{Level: StatusError, Message: "Failed to load questionnaire", Detail: err.Error()}
		return fmt.Errorf("loading questionnaire %s: %w", quizID, err)
	}

	f.name = quiz.Name
	f.description = quiz.Description
	f.questions = make([]Question, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		f.questions = append(f.questions, f.fromWire(q))
	}
	return nil
}

func (f *Form) fromWire(q models.QuestionnaireQuestion) Question {
	var id *int64
	if q.ID != nil && *q.ID > 0 {
		v := *q.ID
		id = &v
	}
	options := make([]Option, 0, len(q.Options))
	for _, o := range q.Options {
		options = append(options, Option{ID: o.ID, Text: o.Text})
	}
	return Question{
		Key:     f.keys.Next(),
		ID:      id,
		Prompt:  q.Question,
		Type:    QuestionType(q.QuestionType),
		Options: options,
	}
}

func (f *Form) resetLocked() {
	f.name = ""
	f.description = ""
	f.questions = []Question{}
	f.phase = PhaseLoading
	f.submitting = false
	f.status = Status{}
}

// SetQuizID points the form at another questionnaire. Results of any request
// made for the previous identifier are dropped; call Load to fetch the new one.
func (f *Form) SetQuizID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.generation++
	f.quizID = id
	f.resetLocked()
}

// Close tears the form down. In-flight requests are cancelled and their
// results ignored.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.generation++
	f.phase = PhaseClosed
}

func (f *Form) QuizID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quizID
}

func (f *Form) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

func (f *Form) Questions() []Question {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneQuestions(f.questions)
}

func (f *Form) edit(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != PhaseReady {
		return ErrNotReady
	}
	return fn()
}

func (f *Form) SetName(name string) error {
	return f.edit(func() error {
		f.name = name
		return nil
	})
}

func (f *Form) SetDescription(description string) error {
	return f.edit(func() error {
		f.description = description
		return nil
	})
}

// AddQuestion appends an empty text question and returns it.
func (f *Form) AddQuestion() (Question, error) {
	var added Question
	err := f.edit(func() error {
		added = Question{Key: f.keys.Next(), Type: TypeText, Options: []Option{}}
		next := make([]Question, 0, len(f.questions)+1)
		next = append(next, f.questions...)
		f.questions = append(next, added)
		return nil
	})
	return added, err
}

// UpdateQuestion sets the prompt or the type of every question with the given
// key. Nothing changes when no question matches.
func (f *Form) UpdateQuestion(key int64, field Field, value string) error {
	var apply func(q Question) Question
	switch field {
	case FieldQuestion:
		apply = func(q Question) Question {
			q.Prompt = value
			return q
		}
	case FieldType:
		t, err := ParseQuestionType(value)
		if err != nil {
			return err
		}
		apply = func(q Question) Question {
			q.Type = t
			return q
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return f.edit(func() error {
		f.questions = mapQuestions(f.questions, key, apply)
		return nil
	})
}

func (f *Form) AddOption(key int64) error {
	return f.edit(func() error {
		f.questions = mapQuestions(f.questions, key, func(q Question) Question {
			q.Options = append(cloneOptions(q.Options), Option{})
			return q
		})
		return nil
	})
}

// UpdateOption replaces the text of one option and keeps its id.
func (f *Form) UpdateOption(key int64, index int, value string) error {
	return f.edit(func() error {
		f.questions = mapQuestions(f.questions, key, func(q Question) Question {
			if index < 0 || index >= len(q.Options) {
				return q
			}
			q.Options = cloneOptions(q.Options)
			q.Options[index].Text = value
			return q
		})
		return nil
	})
}

func (f *Form) RemoveOption(key int64, index int) error {
	return f.edit(func() error {
		f.questions = mapQuestions(f.questions, key, func(q Question) Question {
			if index < 0 || index >= len(q.Options) {
				return q
			}
			options := make([]Option, 0, len(q.Options)-1)
			options = append(options, q.Options[:index]...)
			q.Options = append(options, q.Options[index+1:]...)
			return q
		})
		return nil
	})
}

func (f *Form) RemoveQuestion(key int64) error {
	return f.edit(func() error {
		next := make([]Question, 0, len(f.questions))
		for _, q := range f.questions {
			if q.Key != key {
				next = append(next, q)
			}
		}
		f.questions = next
		return nil
	})
}

// Submit sends the edited questionnaire to the API. On success the form is
// closed and the navigator is sent to RootPath; on failure the form keeps its
// state and the status describes the error. The returned payload is what was
// sent.
func (f *Form) Submit(ctx context.Context) (*models.QuestionnaireUpdate, error) {
	f.mu.Lock()
	if f.phase != PhaseReady {
		f.mu.Unlock()
		return nil, ErrNotReady
	}
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	update := BuildUpdate(f.name, f.description, f.questions)
	if err := update.Validate(); err != nil {
		f.status = Status{Level: StatusError, Message: "Questionnaire is invalid", Detail: err.Error()}
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	f.submitting = true
	gen := f.generation
	quizID := f.quizID
	f.mu.Unlock()

	err := f.api.UpdateQuestionnaire(ctx, quizID, update)

	f.mu.Lock()
	if gen != f.generation {
		f.mu.Unlock()
		if err != nil {
			log.Printf("Error updating questionnaire %s after the form was closed: %v", quizID, err)
			return nil, fmt.Errorf("updating questionnaire %s: %w", quizID, err)
		}
		return update, ErrStale
	}
	f.submitting = false
	if err != nil {
		f.status = Status{Level: StatusError, Message: "Failed to update questionnaire", Detail: err.Error()}
		f.mu.Unlock()
		log.Printf("Error updating questionnaire %s: %v", quizID, err)
		return nil, fmt.Errorf("updating questionnaire %s: %w", quizID, err)
	}
	f.status = Status{Level: StatusInfo, Message: "Questionnaire updated"}
	f.phase = PhaseClosed
	f.generation++
	navigate := f.navigate
	f.mu.Unlock()

	if navigate != nil {
		navigate(RootPath)
	}
	return update, nil
}

// BuildUpdate converts form state into the API's update payload. Question ids
// are sent only for stored questions, order is the 1-based position, and
// text questions never carry options.
func BuildUpdate(name, description string, questions []Question) *models.QuestionnaireUpdate {
	update := &models.QuestionnaireUpdate{
		Name:        name,
		Description: description,
		Questions:   make([]models.QuestionPayload, 0, len(questions)),
	}
	for i, q := range questions {
		payload := models.QuestionPayload{
			Question:     q.Prompt,
			QuestionType: string(q.Type),
			Order:        i + 1,
			Options:      []models.OptionPayload{},
		}
		if q.Persisted() {
			id := *q.ID
			payload.ID = &id
		}
		if q.Type != TypeText {
			for _, o := range q.Options {
				payload.Options = append(payload.Options, models.OptionPayload{ID: o.ID, Text: o.Text})
			}
		}
		update.Questions = append(update.Questions, payload)
	}
	return update
}

func mapQuestions(questions []Question, key int64, fn func(Question) Question) []Question {
	next := make([]Question, len(questions))
	for i, q := range questions {
		if q.Key == key {
			q = fn(q)
		}
		next[i] = q
	}
	return next
}

func cloneOptions(options []Option) []Option {
	out := make([]Option, len(options))
	copy(out, options)
	return out
}

func cloneQuestions(questions []Question) []Question {
	out := make([]Question, len(questions))
	for i, q := range questions {
		q.Options = cloneOptions(q.Options)
		out[i] = q
	}
	return out
}
