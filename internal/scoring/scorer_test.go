package scoring

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
)

// stubChatClient returns a canned completion or error.
type stubChatClient struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (s *stubChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.content}},
		},
	}, nil
}

func newStubScorer(t *testing.T, stub *stubChatClient) *OpenAIScorer {
	t.Helper()
	logger.Log = zaptest.NewLogger(t)
	return &OpenAIScorer{client: stub, model: openai.GPT4oMini}
}

func TestScore_ParsesVerdict(t *testing.T) {
	stub := &stubChatClient{content: `{"score": 85, "category": "hot", "reasoning": "High-value property with full contact data.", "suggestions": "Call within the hour."}`}
	scorer := newStubScorer(t, stub)
	lead := model.NewLead(&model.Lead{Customer: model.NewCustomer()})

	score, err := scorer.Score(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, 85, score.Score)
	assert.Equal(t, "hot", score.Category)
	assert.NotEmpty(t, score.Reasoning)
	assert.NotEmpty(t, score.Suggestions)

	require.Len(t, stub.lastReq.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, stub.lastReq.Messages[0].Role)
	assert.Contains(t, stub.lastReq.Messages[1].Content, lead.ApplicationName)
}

func TestScore_ClientError(t *testing.T) {
	stub := &stubChatClient{err: errors.New("rate limited")}
	scorer := newStubScorer(t, stub)

	_, err := scorer.Score(context.Background(), model.NewLead())
	assert.ErrorIs(t, err, apperrors.ErrScoring)
}

func TestScore_UnparseableVerdict(t *testing.T) {
	stub := &stubChatClient{content: "I would rate this lead quite highly."}
	scorer := newStubScorer(t, stub)

	_, err := scorer.Score(context.Background(), model.NewLead())
	assert.ErrorIs(t, err, apperrors.ErrScoring)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantScore    int
		wantCategory string
		wantErr      bool
	}{
		{
			name:         "plain json",
			content:      `{"score": 42, "category": "warm"}`,
			wantScore:    42,
			wantCategory: "warm",
		},
		{
			name:         "json fenced",
			content:      "```json\n{\"score\": 70, \"category\": \"hot\"}\n```",
			wantScore:    70,
			wantCategory: "hot",
		},
		{
			name:         "bare fence",
			content:      "```\n{\"score\": 10, \"category\": \"cold\"}\n```",
			wantScore:    10,
			wantCategory: "cold",
		},
		{
			name:         "score clamped high",
			content:      `{"score": 250, "category": "hot"}`,
			wantScore:    100,
			wantCategory: "hot",
		},
		{
			name:         "score clamped low",
			content:      `{"score": -5, "category": "cold"}`,
			wantScore:    0,
			wantCategory: "cold",
		},
		{
			name:    "not json",
			content: "a very promising lead",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verdict, err := parseVerdict(tc.content)
			if tc.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrScoring)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantScore, verdict.Score)
			assert.Equal(t, tc.wantCategory, verdict.Category)
		})
	}
}

func TestDescribeLead_WithoutProperty(t *testing.T) {
	lead := model.NewLead(&model.Lead{Customer: model.NewCustomer()})
	lead.Property = nil

	desc := describeLead(lead)
	assert.Contains(t, desc, lead.Customer.Email)
	assert.Contains(t, desc, "No property details attached")
}
