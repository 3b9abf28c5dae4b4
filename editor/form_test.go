package editor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questionnaire_editor/models"
)

type fakeAPI struct {
	mu      sync.Mutex
	get     func(ctx context.Context, id string) (*models.Questionnaire, error)
	update  func(ctx context.Context, id string, u *models.QuestionnaireUpdate) error
	updates []*models.QuestionnaireUpdate
}

func (a *fakeAPI) GetQuestionnaire(ctx context.Context, id string) (*models.Questionnaire, error) {
	return a.get(ctx, id)
}

func (a *fakeAPI) UpdateQuestionnaire(ctx context.Context, id string, u *models.QuestionnaireUpdate) error {
	a.mu.Lock()
	a.updates = append(a.updates, u)
	a.mu.Unlock()
	if a.update == nil {
		return nil
	}
	return a.update(ctx, id, u)
}

func int64p(v int64) *int64 { return &v }

func decodeQuiz(t *testing.T, body string) *models.Questionnaire {
	t.Helper()
	var q models.Questionnaire
	require.NoError(t, json.Unmarshal([]byte(body), &q))
	return &q
}

func staticAPI(t *testing.T, body string) *fakeAPI {
	quiz := decodeQuiz(t, body)
	return &fakeAPI{get: func(context.Context, string) (*models.Questionnaire, error) {
		return quiz, nil
	}}
}

func loadedForm(t *testing.T, api *fakeAPI, nav Navigator) *Form {
	t.Helper()
	f := NewForm("12", api, &KeySource{}, nav)
	require.NoError(t, f.Load(context.Background()))
	return f
}

func TestLoadAssignsDistinctKeysToQuestionsWithoutIDs(t *testing.T) {
	api := staticAPI(t, `{"name": "Q", "description": "D", "questions": [
		{"question": "a", "question_type": "text", "options": []},
		{"id": null, "question": "b", "question_type": "text", "options": []},
		{"id": 0, "question": "c", "question_type": "text", "options": []}
	]}`)
	f := loadedForm(t, api, nil)

	questions := f.Questions()
	require.Len(t, questions, 3)
	seen := map[int64]bool{}
	for _, q := range questions {
		assert.Positive(t, q.Key)
		assert.False(t, seen[q.Key], "duplicate key %d", q.Key)
		seen[q.Key] = true
		assert.False(t, q.Persisted())
	}
}

func TestLoadKeepsServerIDs(t *testing.T) {
	api := staticAPI(t, `{"name": "Q", "questions": [
		{"id": 41, "question": "a", "question_type": "single", "options": [{"id": 9, "text": "x"}]}
	]}`)
	f := loadedForm(t, api, nil)

	snap := f.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Equal(t, "Q", snap.Name)
	require.Len(t, snap.Questions, 1)
	q := snap.Questions[0]
	require.True(t, q.Persisted())
	assert.EqualValues(t, 41, *q.ID)
	assert.Equal(t, TypeSingle, q.Type)
	assert.Equal(t, []Option{{ID: int64p(9), Text: "x"}}, q.Options)
}

func TestStringAndRecordOptionsDisplayTheSame(t *testing.T) {
	fromStrings := loadedForm(t, staticAPI(t, `{"questions": [
		{"id": 1, "question": "p", "question_type": "multiple", "options": ["Yes", "No"]}
	]}`), nil)
	fromRecords := loadedForm(t, staticAPI(t, `{"questions": [
		{"id": 1, "question": "p", "question_type": "multiple", "options": [{"id": 3, "text": "Yes"}, {"id": 4, "text": "No"}]}
	]}`), nil)

	texts := func(f *Form) []string {
		var out []string
		for _, o := range f.Questions()[0].Options {
			out = append(out, o.Text)
		}
		return out
	}
	assert.Equal(t, texts(fromStrings), texts(fromRecords))
	assert.Equal(t, []string{"Yes", "No"}, texts(fromRecords))
}

func TestLoadFailureLeavesEmptyReadyForm(t *testing.T) {
	api := &fakeAPI{get: func(context.Context, string) (*models.Questionnaire, error) {
		return nil, errors.New("connection refused")
	}}
	f := NewForm("12", api, nil, nil)

	err := f.Load(context.Background())
	require.Error(t, err)

	snap := f.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Empty(t, snap.Questions)
	assert.NotNil(t, snap.Questions)
	assert.Empty(t, snap.Name)
	assert.Equal(t, StatusError, snap.Status.Level)
	assert.Contains(t, snap.Status.Detail, "connection refused")
}

func TestEditsRejectedWhileLoading(t *testing.T) {
	f := NewForm("12", &fakeAPI{}, nil, nil)
	_, err := f.AddQuestion()
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, f.SetName("x"), ErrNotReady)
	_, err = f.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestAddQuestion(t *testing.T) {
	f := loadedForm(t, staticAPI(t, `{"questions": [{"id": 1, "question": "a", "question_type": "text", "options": []}]}`), nil)
	before := f.Questions()

	added, err := f.AddQuestion()
	require.NoError(t, err)

	after := f.Questions()
	require.Len(t, after, len(before)+1)
	last := after[len(after)-1]
	assert.Equal(t, added, last)
	assert.Equal(t, TypeText, last.Type)
	assert.Empty(t, last.Options)
	assert.Empty(t, last.Prompt)
	assert.False(t, last.Persisted())
	assert.NotEqual(t, before[0].Key, last.Key)
}

func TestUpdateQuestion(t *testing.T) {
	f := loadedForm(t, staticAPI(t, `{"questions": [{"id": 1, "question": "a", "question_type": "text", "options": []}]}`), nil)
	key := f.Questions()[0].Key

	require.NoError(t, f.UpdateQuestion(key, FieldQuestion, "What colour?"))
	require.NoError(t, f.UpdateQuestion(key, FieldType, "multiple"))
	q := f.Questions()[0]
	assert.Equal(t, "What colour?", q.Prompt)
	assert.Equal(t, TypeMultiple, q.Type)

	assert.ErrorIs(t, f.UpdateQuestion(key, FieldType, "essay"), ErrInvalidType)
	assert.ErrorIs(t, f.UpdateQuestion(key, Field("order"), "2"), ErrUnknownField)

	before := f.Questions()
	require.NoError(t, f.UpdateQuestion(key+1000, FieldQuestion, "ignored"))
	assert.Equal(t, before, f.Questions())
}

func TestOptionEditsPreserveIDs(t *testing.T) {
	f := loadedForm(t, staticAPI(t, `{"questions": [
		{"id": 1, "question": "p", "question_type": "single", "options": [{"id": 5, "text": "old"}]}
	]}`), nil)
	key := f.Questions()[0].Key

	require.NoError(t, f.AddOption(key))
	require.NoError(t, f.UpdateOption(key, 0, "renamed"))
	require.NoError(t, f.UpdateOption(key, 1, "fresh"))

	opts := f.Questions()[0].Options
	require.Len(t, opts, 2)
	assert.Equal(t, Option{ID: int64p(5), Text: "renamed"}, opts[0])
	assert.Equal(t, Option{Text: "fresh"}, opts[1])

	require.NoError(t, f.UpdateOption(key, 7, "out of range"))
	require.NoError(t, f.RemoveOption(key, 0))
	assert.Equal(t, []Option{{Text: "fresh"}}, f.Questions()[0].Options)
}

func TestMutationsDoNotAliasPreviousState(t *testing.T) {
	f := loadedForm(t, staticAPI(t, `{"questions": [
		{"id": 1, "question": "p", "question_type": "single", "options": ["a", "b"]}
	]}`), nil)
	key := f.Questions()[0].Key
	snap := f.Snapshot()

	require.NoError(t, f.UpdateOption(key, 0, "changed"))
	require.NoError(t, f.RemoveOption(key, 1))

	assert.Equal(t, "a", snap.Questions[0].Options[0].Text)
	assert.Len(t, snap.Questions[0].Options, 2)
}

func TestRemoveQuestion(t *testing.T) {
	f := loadedForm(t, staticAPI(t, `{"questions": [
		{"id": 1, "question": "a", "question_type": "text", "options": []},
		{"id": 2, "question": "b", "question_type": "text", "options": []}
	]}`), nil)
	first := f.Questions()[0]

	require.NoError(t, f.RemoveQuestion(first.Key))
	remaining := f.Questions()
	require.Len(t, remaining, 1)
	assert.Equal(t, "b", remaining[0].Prompt)
}

func TestSubmitPayloadShape(t *testing.T) {
	api := staticAPI(t, `{"name": "Survey", "description": "About you", "questions": [
		{"id": 10, "question": "Tell us", "question_type": "text", "options": []},
		{"id": 11, "question": "Pick", "question_type": "single", "options": [{"id": 5, "text": "Existing"}]}
	]}`)
	var navigations []string
	f := loadedForm(t, api, func(path string) { navigations = append(navigations, path) })
	choice := f.Questions()[1].Key

	require.NoError(t, f.AddOption(choice))
	require.NoError(t, f.UpdateOption(choice, 1, "Added"))

	_, err := f.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, api.updates, 1)

	raw, err := json.Marshal(api.updates[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "Survey",
		"description": "About you",
		"questions": [
			{"id": 10, "question": "Tell us", "question_type": "text", "order": 1, "options": []},
			{"id": 11, "question": "Pick", "question_type": "single", "order": 2,
			 "options": [{"id": 5, "text": "Existing"}, {"id": null, "text": "Added"}]}
		]
	}`, string(raw))
	assert.Equal(t, []string{RootPath}, navigations)
	assert.Equal(t, PhaseClosed, f.Phase())
}

func TestSubmitOmitsIDOfNewQuestions(t *testing.T) {
	api := staticAPI(t, `{"name": "N", "questions": []}`)
	f := loadedForm(t, api, nil)
	q, err := f.AddQuestion()
	require.NoError(t, err)
	require.NoError(t, f.UpdateQuestion(q.Key, FieldQuestion, "Anything else?"))

	_, err = f.Submit(context.Background())
	require.NoError(t, err)

	raw, err := json.Marshal(api.updates[0].Questions[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"id"`)
}

func TestTextQuestionDropsOptionsOnSubmit(t *testing.T) {
	update := BuildUpdate("n", "d", []Question{
		{Key: 1, Type: TypeText, Options: []Option{{Text: "leftover"}}},
	})
	assert.Empty(t, update.Questions[0].Options)
	assert.NotNil(t, update.Questions[0].Options)
}

func TestSubmitFailureKeepsState(t *testing.T) {
	api := staticAPI(t, `{"name": "N", "questions": [{"id": 1, "question": "a", "question_type": "text", "options": []}]}`)
	api.update = func(context.Context, string, *models.QuestionnaireUpdate) error {
		return errors.New("400 Bad Request: name too short")
	}
	navigated := 0
	f := loadedForm(t, api, func(string) { navigated++ })
	before := f.Snapshot()

	_, err := f.Submit(context.Background())
	require.Error(t, err)

	after := f.Snapshot()
	assert.Zero(t, navigated)
	assert.Equal(t, PhaseReady, after.Phase)
	assert.False(t, after.Submitting)
	assert.Equal(t, before.Questions, after.Questions)
	assert.Equal(t, before.Name, after.Name)
	assert.Equal(t, StatusError, after.Status.Level)
	assert.Contains(t, after.Status.Detail, "name too short")

	api.update = nil
	_, err = f.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, navigated)
}

func TestSubmitRejectsInvalidType(t *testing.T) {
	api := staticAPI(t, `{"questions": [{"id": 1, "question": "a", "question_type": "essay", "options": []}]}`)
	f := loadedForm(t, api, nil)

	_, err := f.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Empty(t, api.updates)
	assert.Equal(t, StatusError, f.Snapshot().Status.Level)
}

func TestSecondSubmitWhileOutstandingIsRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := staticAPI(t, `{"name": "N", "questions": []}`)
	api.update = func(context.Context, string, *models.QuestionnaireUpdate) error {
		close(started)
		<-release
		return nil
	}
	navigated := 0
	f := loadedForm(t, api, func(string) { navigated++ })

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background())
		done <- err
	}()
	<-started

	assert.True(t, f.Snapshot().Submitting)
	_, err := f.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, navigated)
	assert.Len(t, api.updates, 1)
}

func TestLateLoadResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{get: func(ctx context.Context, id string) (*models.Questionnaire, error) {
		if id == "old" {
			close(started)
			<-release
			return &models.Questionnaire{Name: "stale"}, nil
		}
		return &models.Questionnaire{Name: "current"}, nil
	}}
	f := NewForm("old", api, nil, nil)

	done := make(chan error, 1)
	go func() { done <- f.Load(context.Background()) }()
	<-started

	f.SetQuizID("new")
	require.NoError(t, f.Load(context.Background()))
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, "current", f.Snapshot().Name)
	assert.Equal(t, "new", f.QuizID())
}

func TestCloseCancelsInFlightLoad(t *testing.T) {
	started := make(chan struct{})
	api := &fakeAPI{get: func(ctx context.Context, id string) (*models.Questionnaire, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	f := NewForm("12", api, nil, nil)

	done := make(chan error, 1)
	go func() { done <- f.Load(context.Background()) }()
	<-started
	f.Close()

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, PhaseClosed, f.Phase())
}

func TestRestoreFormKeepsKeysUnique(t *testing.T) {
	keys := &KeySource{}
	snap := Snapshot{
		QuizID:    "12",
		Phase:     PhaseReady,
		Questions: []Question{{Key: 40, Type: TypeText, Options: []Option{}}},
	}
	f := RestoreForm(snap, &fakeAPI{}, keys, nil)

	q, err := f.AddQuestion()
	require.NoError(t, err)
	assert.Greater(t, q.Key, int64(40))
	assert.Len(t, f.Questions(), 2)
}

func TestRestoreFormDropsSubmittingFlag(t *testing.T) {
	f := RestoreForm(Snapshot{QuizID: "1", Phase: PhaseReady, Submitting: true}, &fakeAPI{}, nil, nil)
	assert.False(t, f.Snapshot().Submitting)
	assert.Equal(t, PhaseReady, f.Phase())

	loading := RestoreForm(Snapshot{QuizID: "1", Phase: PhaseLoading}, &fakeAPI{}, nil, nil)
	assert.Equal(t, PhaseLoading, loading.Phase())
}

func TestRestoreFormTreatsNonPositiveIDsAsNew(t *testing.T) {
	snap := Snapshot{
		QuizID: "12",
		Phase:  PhaseReady,
		Questions: []Question{
			{Key: 1, ID: int64p(0), Prompt: "zero", Type: TypeText, Options: []Option{}},
			{Key: 2, ID: int64p(9), Prompt: "stored", Type: TypeText, Options: []Option{}},
		},
	}
	f := RestoreForm(snap, &fakeAPI{}, &KeySource{}, nil)

	qs := f.Questions()
	assert.False(t, qs[0].Persisted())
	assert.True(t, qs[1].Persisted())

	update := BuildUpdate("", "", qs)
	assert.Nil(t, update.Questions[0].ID)
	require.NotNil(t, update.Questions[1].ID)
	assert.EqualValues(t, 9, *update.Questions[1].ID)
}
