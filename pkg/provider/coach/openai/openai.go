// Package openai provides an audio-capable coaching provider backed by the
// OpenAI API. It sends the learner's recording as an input_audio content part
// alongside the coaching prompt, so the model critiques the actual sound
// rather than a transcription of it. Requires an audio-capable chat model
// such as gpt-4o-audio-preview.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/accentor-app/accentor/pkg/provider/coach"
)

// Compile-time assertion that Provider implements coach.Provider.
var _ coach.Provider = (*Provider)(nil)

// Provider implements coach.Provider using the OpenAI API.
type Provider struct {
	client      oai.Client
	model       string
	temperature float64
	maxTokens   int
}

// config holds optional configuration for the provider.
type config struct {
	baseURL     string
	timeout     time.Duration
	temperature float64
	maxTokens   int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithTemperature sets the sampling temperature. Coaching output feeds a
// JSON parser, so low values (the default is 0.3) keep replies well-formed.
func WithTemperature(t float64) Option {
	return func(c *config) {
		c.temperature = t
	}
}

// WithMaxTokens caps the completion length. Zero means the model default.
func WithMaxTokens(n int) Option {
	return func(c *config) {
		c.maxTokens = n
	}
}

// New constructs a new OpenAI coaching Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai coach: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai coach: model must not be empty")
	}

	cfg := &config{temperature: 0.3}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{
		client:      client,
		model:       model,
		temperature: cfg.temperature,
		maxTokens:   cfg.maxTokens,
	}, nil
}

// Critique implements coach.Provider.
func (p *Provider) Critique(ctx context.Context, req coach.CritiqueRequest) (string, error) {
	if len(req.Audio) == 0 {
		return "", fmt.Errorf("openai coach: audio must not be empty")
	}
	format := req.Format
	if format == "" {
		format = "wav"
	}

	parts := []oai.ChatCompletionContentPartUnionParam{
		oai.TextContentPart(req.Prompt),
		oai.InputAudioContentPart(oai.ChatCompletionContentPartInputAudioInputAudioParam{
			Data:   base64.StdEncoding.EncodeToString(req.Audio),
			Format: format,
		}),
	}

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.UserMessage(parts),
		},
	}
	if p.temperature != 0 {
		params.Temperature = param.NewOpt(p.temperature)
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(p.maxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai coach: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai coach: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
