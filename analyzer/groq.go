package analyzer

import (
	"context"
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/flarexio/marketfit/conf"
	"github.com/flarexio/marketfit/opportunity"
)

// minTemperature stands in for 0, which go-openai drops from the request.
const minTemperature float32 = 1e-6

var (
	ErrAPIKeyMissing = errors.New("llm api key not configured")
	ErrNoCompletion  = errors.New("no completion returned")
)

// NewGroq builds an analyzer on Groq's OpenAI compatible chat completions api.
func NewGroq(cfg conf.LLM) *Groq {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	if cfg.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 30
	}

	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = minTemperature
	}

	return &Groq{
		client:      openai.NewClientWithConfig(config),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: temperature,
		maxItems:    maxItems,
	}
}

type Groq struct {
	client      *openai.Client
	apiKey      string
	model       string
	temperature float32
	maxItems    int
}

func (g *Groq) GenerateIdeas(ctx context.Context, items []*opportunity.Opportunity) ([]*opportunity.Idea, error) {
	if len(items) == 0 {
		return make([]*opportunity.Idea, 0), nil
	}

	if g.apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(items, g.maxItems)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: g.temperature,
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, ErrNoCompletion
	}

	return ParseIdeas(resp.Choices[0].Message.Content, items)
}
