package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Questionnaire is the read shape returned by GET /questionnaires/{id}.
type Questionnaire struct {
	ID          int64                   `json:"id,omitempty"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Questions   []QuestionnaireQuestion `json:"questions"`
}

type QuestionnaireQuestion struct {
	ID           *int64      `json:"id,omitempty"`
	Question     string      `json:"question"`
	QuestionType string      `json:"question_type"`
	Options      []RawOption `json:"options"`
}

// RawOption accepts both option encodings the API produces: a bare string
// for options that were never stored, or an {"id", "text"} record.
type RawOption struct {
	ID   *int64
	Text string
}

func (o *RawOption) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*o = RawOption{}
		return nil
	}

	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*o = RawOption{Text: text}
		return nil
	}

	if trimmed[0] != '{' && trimmed[0] != '[' {
		// Numbers and booleans are shown as written.
		*o = RawOption{Text: string(trimmed)}
		return nil
	}

	var record struct {
		ID   *int64 `json:"id"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return fmt.Errorf("option must be a scalar or an {id, text} object: %w", err)
	}
	*o = RawOption{ID: record.ID, Text: record.Text}
	return nil
}

// QuestionnaireUpdate is the body of PUT /questionnaires/{id}/.
type QuestionnaireUpdate struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Questions   []QuestionPayload `json:"questions" validate:"dive"`
}

type QuestionPayload struct {
	ID           *int64          `json:"id,omitempty" validate:"omitempty,gt=0"`
	Question     string          `json:"question"`
	QuestionType string          `json:"question_type" validate:"oneof=text single multiple"`
	Order        int             `json:"order" validate:"gte=1"`
	Options      []OptionPayload `json:"options" validate:"dive"`
}

// OptionPayload always carries the id key; it is null for new options.
type OptionPayload struct {
	ID   *int64 `json:"id"`
	Text string `json:"text"`
}

// Validate checks the structural rules the API relies on before a request is sent.
func (u *QuestionnaireUpdate) Validate() error {
	return validate.Struct(u)
}
