package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/config"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/observer"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/utils"
)

// Scorer produces a quality assessment for a freshly created lead. Scoring
// is best effort: callers treat errors as a warning, never as an intake
// failure.
type Scorer interface {
	Score(ctx context.Context, lead *model.Lead) (model.LeadScore, error)
}

// chatClient is the slice of the OpenAI client the scorer needs.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIScorer asks a chat model to rate the lead 0-100 and categorize it.
type OpenAIScorer struct {
	client chatClient
	model  string
}

var _ Scorer = (*OpenAIScorer)(nil)

// NewOpenAIScorer creates a scorer backed by the OpenAI chat API.
func NewOpenAIScorer(cfg config.ScoringConfig) *OpenAIScorer {
	chatModel := cfg.Model
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}
	return &OpenAIScorer{
		client: openai.NewClient(cfg.APIKey),
		model:  chatModel,
	}
}

const systemPrompt = `You are a real-estate lead quality analyst. Rate the lead below.
Respond with a single JSON object and nothing else:
{"score": <integer 0-100>, "category": "<hot|warm|cold>", "reasoning": "<one sentence>", "suggestions": "<one sentence for the sales team>"}`

// scoreResponse mirrors the JSON object the model is instructed to return.
type scoreResponse struct {
	Score       int    `json:"score"`
	Category    string `json:"category"`
	Reasoning   string `json:"reasoning"`
	Suggestions string `json:"suggestions"`
}

// Score sends the lead to the chat model and parses the structured verdict.
func (s *OpenAIScorer) Score(ctx context.Context, lead *model.Lead) (model.LeadScore, error) {
	startTime := utils.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: describeLead(lead)},
		},
		Temperature: 0.2,
	})
	observer.ObserveScoringDuration(time.Since(startTime))
	if err != nil {
		observer.IncScoringRequest("error")
		return model.LeadScore{}, fmt.Errorf("%w: chat completion failed: %w", apperrors.ErrScoring, err)
	}
	if len(resp.Choices) == 0 {
		observer.IncScoringRequest("error")
		return model.LeadScore{}, fmt.Errorf("%w: empty completion response", apperrors.ErrScoring)
	}

	verdict, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		observer.IncScoringRequest("parse_error")
		logger.FromContext(ctx).Warn("Unparseable scoring response",
			zap.String("lead_uuid", lead.LeadUUID),
			zap.Error(err))
		return model.LeadScore{}, err
	}

	observer.IncScoringRequest("success")
	return verdict, nil
}

// describeLead renders the lead as a compact prompt block.
func describeLead(lead *model.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source application: %s\n", lead.ApplicationName)
	if c := lead.Customer; c != nil {
		fmt.Fprintf(&b, "Customer: %s %s, email %s, phone %s\n", c.FirstName, c.LastName, c.Email, c.Phone)
	}
	if p := lead.Property; p != nil {
		if p.PropertyType != nil {
			fmt.Fprintf(&b, "Property type: %s\n", *p.PropertyType)
		}
		if p.Price != nil {
			fmt.Fprintf(&b, "Price: %.2f\n", *p.Price)
		}
		if p.City != nil {
			fmt.Fprintf(&b, "City: %s\n", *p.City)
		}
		if p.Location != nil {
			fmt.Fprintf(&b, "Location: %s\n", *p.Location)
		}
	} else {
		b.WriteString("No property details attached.\n")
	}
	return b.String()
}

// parseVerdict extracts the JSON verdict, tolerating markdown fences, and
// clamps the score into the 0-100 range.
func parseVerdict(content string) (model.LeadScore, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return model.LeadScore{}, fmt.Errorf("%w: invalid verdict JSON: %w", apperrors.ErrScoring, err)
	}

	if parsed.Score < 0 {
		parsed.Score = 0
	}
	if parsed.Score > 100 {
		parsed.Score = 100
	}

	return model.LeadScore{
		Score:       parsed.Score,
		Category:    parsed.Category,
		Reasoning:   parsed.Reasoning,
		Suggestions: parsed.Suggestions,
	}, nil
}
