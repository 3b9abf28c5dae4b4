package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"questionnaire_editor/models"
)

const TypeQuestionnaireUpdated = "questionnaire.updated"

// QuestionnaireUpdated is the message body published after a successful update.
type QuestionnaireUpdated struct {
	Type            string    `json:"type"`
	QuestionnaireID string    `json:"questionnaire_id"`
	UserID          int       `json:"user_id"`
	Name            string    `json:"name"`
	QuestionCount   int       `json:"question_count"`
	NewQuestions    int       `json:"new_questions"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends update events to an SQS queue.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
	now      func() time.Time
}

// NewSQSPublisher builds a publisher from the default AWS credential chain.
func NewSQSPublisher(ctx context.Context, queueURL string) (*SQSPublisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &SQSPublisher{client: sqs.NewFromConfig(cfg), queueURL: queueURL, now: time.Now}, nil
}

func (p *SQSPublisher) QuestionnaireUpdated(ctx context.Context, quizID string, userID int, update *models.QuestionnaireUpdate) error {
	event := QuestionnaireUpdated{
		Type:            TypeQuestionnaireUpdated,
		QuestionnaireID: quizID,
		UserID:          userID,
		Name:            update.Name,
		QuestionCount:   len(update.Questions),
		UpdatedAt:       p.now().UTC(),
	}
	for _, q := range update.Questions {
		if q.ID == nil {
			event.NewQuestions++
		}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(TypeQuestionnaireUpdated),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sending %s event for questionnaire %s: %w", TypeQuestionnaireUpdated, quizID, err)
	}
	return nil
}
