// Package openai implements analyzer.Provider on the OpenAI Chat Completions
// API using audio-capable models (gpt-4o-audio-preview and successors).
//
// Audio clips are sent as base64-encoded input_audio content parts. The API
// has no grounded-search tool, so fact-check verdicts rest on model knowledge
// alone.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-audio-preview"

// Provider implements analyzer.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

var _ analyzer.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
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

// New constructs a new OpenAI analysis Provider.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, analyzer.Credential(errors.New("openai: apiKey must not be empty"))
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
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
	return &Provider{client: client, model: model}, nil
}

// Analyze implements analyzer.Provider.
func (p *Provider) Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
	if len(req.Speakers) == 0 {
		return nil, analyzer.Permanent(errors.New("openai: request has no speakers"))
	}

	var parts []oai.ChatCompletionContentPartUnionParam
	if pre := analyzer.ContextPreamble(req.Context); pre != "" {
		parts = append(parts, oai.TextContentPart(pre))
	}
	for _, s := range req.Speakers {
		parts = append(parts,
			oai.TextContentPart(analyzer.SpeakerLabel(s.SpeakerName)),
			oai.InputAudioContentPart(oai.ChatCompletionContentPartInputAudioInputAudioParam{
				Data:   base64.StdEncoding.EncodeToString(s.WAV),
				Format: "wav",
			}),
		)
	}

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(analyzer.Instructions(req.Mode, req.FactCheck)),
			oai.UserMessage(parts),
		},
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, analyzer.Permanent(errors.New("openai: empty choices in response"))
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, analyzer.Permanent(errors.New("openai: empty response"))
	}

	res := &analyzer.Result{Text: text}
	if req.FactCheck {
		res.Claims = analyzer.ParseClaims(text)
	}
	return res, nil
}

// classify maps API failures onto analyzer error kinds using the HTTP status
// the SDK attaches to request errors.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return analyzer.Transient(err)
	}
	var apierr *oai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden:
			return analyzer.Credential(err)
		case apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= 500:
			return analyzer.Transient(err)
		case apierr.StatusCode >= 400:
			return analyzer.Permanent(fmt.Errorf("openai: rejected request: %w", err))
		}
	}
	return analyzer.Transient(err)
}
