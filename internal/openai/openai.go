package openai

import (
	"context"
	"strings"

	"github.com/SurinSeong/seasonal-ai-backend/internal/data"
	"github.com/SurinSeong/seasonal-ai-backend/internal/metrics"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultModel = openai.ChatModelGPT4oMini

var ErrNoChoices = errors.New("no choices returned")

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// nil leaves the sampling temperature to the API default
	Temperature *float64
	// nil keeps the SDK retry policy
	MaxRetries *int
}

type Client struct {
	client      openai.Client
	model       string
	temperature *float64
	metrics     metrics.Metrics
}

// NewClient builds the process-wide client. An empty API key is accepted;
// calls fail with an authentication error until one is configured.
func NewClient(config Config, m metrics.Metrics) *Client {
	opts := []option.RequestOption{}

	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	} else {
		log.Warn("OpenAI API key not configured, requests will fail until it is set")
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/")+"/"))
	}
	if config.MaxRetries != nil {
		opts = append(opts, option.WithMaxRetries(*config.MaxRetries))
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: config.Temperature,
		metrics:     m,
	}
}

func (c *Client) observe(call string, err error) {
	if c.metrics != nil {
		c.metrics.ObserveUpstreamCall(call, err)
	}
}

func extractGPTResponse(chatCompletion *openai.ChatCompletion) (string, error) {
	if chatCompletion == nil {
		return "", errors.New("nil chatCompletion")
	}
	if len(chatCompletion.Choices) == 0 {
		return "", ErrNoChoices
	}
	return chatCompletion.Choices[0].Message.Content, nil
}

// Complete sends the fixed system prompt and the user message as a single
// turn and returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, userMessage string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(data.SystemPrompt),
			openai.UserMessage(userMessage),
		},
		Model: c.model,
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}

	chatCompletion, err := c.client.Chat.Completions.New(ctx, params)
	c.observe("chat.completions", err)
	if err != nil {
		return "", errors.Wrap(err, "ChatCompletion error")
	}

	if c.metrics != nil {
		c.metrics.ObserveTokenUsage(chatCompletion.Model, chatCompletion.Usage.PromptTokens, chatCompletion.Usage.CompletionTokens)
	}

	return extractGPTResponse(chatCompletion)
}
