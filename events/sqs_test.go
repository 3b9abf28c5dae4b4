package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questionnaire_editor/models"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSPublisherSendsEvent(t *testing.T) {
	fake := &fakeSQS{}
	at := time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)
	p := &SQSPublisher{client: fake, queueURL: "https://sqs.example/queue", now: func() time.Time { return at }}

	id := int64(3)
	update := &models.QuestionnaireUpdate{
		Name: "Survey",
		Questions: []models.QuestionPayload{
			{ID: &id, QuestionType: "text", Order: 1},
			{QuestionType: "single", Order: 2},
		},
	}
	require.NoError(t, p.QuestionnaireUpdated(context.Background(), "12", 7, update))
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, "https://sqs.example/queue", aws.ToString(in.QueueUrl))
	assert.Equal(t, TypeQuestionnaireUpdated, aws.ToString(in.MessageAttributes["event_type"].StringValue))

	var event QuestionnaireUpdated
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &event))
	assert.Equal(t, QuestionnaireUpdated{
		Type:            TypeQuestionnaireUpdated,
		QuestionnaireID: "12",
		UserID:          7,
		Name:            "Survey",
		QuestionCount:   2,
		NewQuestions:    1,
		UpdatedAt:       at,
	}, event)
}

func TestSQSPublisherWrapsErrors(t *testing.T) {
	boom := errors.New("throttled")
	p := &SQSPublisher{client: &fakeSQS{err: boom}, queueURL: "q", now: time.Now}

	err := p.QuestionnaireUpdated(context.Background(), "12", 1, &models.QuestionnaireUpdate{})
	assert.ErrorIs(t, err, boom)
}
