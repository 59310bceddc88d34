// Package gemini implements analyzer.Provider on the Gemini API.
//
// Audio clips are sent inline as WAV parts. In debate mode with fact-checking
// enabled the request carries the Google Search tool so claim verdicts are
// grounded against live results.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Provider calls the Gemini API with a per-session API key.
type Provider struct {
	client *genai.Client
	model  string
}

var _ analyzer.Provider = (*Provider)(nil)

// New builds a provider around the given API key. The key is held by the
// underlying client and never logged.
func New(ctx context.Context, apiKey, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, analyzer.Credential(errors.New("gemini: empty API key"))
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Analyze implements analyzer.Provider.
func (p *Provider) Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
	if len(req.Speakers) == 0 {
		return nil, analyzer.Permanent(errors.New("gemini: request has no speakers"))
	}

	parts := []*genai.Part{genai.NewPartFromText(analyzer.Instructions(req.Mode, req.FactCheck))}
	if pre := analyzer.ContextPreamble(req.Context); pre != "" {
		parts = append(parts, genai.NewPartFromText(pre))
	}
	for _, s := range req.Speakers {
		parts = append(parts,
			genai.NewPartFromText(analyzer.SpeakerLabel(s.SpeakerName)),
			genai.NewPartFromBytes(s.WAV, "audio/wav"),
		)
	}

	var cfg *genai.GenerateContentConfig
	if req.FactCheck {
		cfg = &genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, classify(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, analyzer.Permanent(errors.New("gemini: empty response"))
	}

	res := &analyzer.Result{Text: text}
	if req.FactCheck {
		res.Claims = analyzer.ParseClaims(text)
	}
	return res, nil
}

// classify maps API failures onto analyzer error kinds. The SDK surfaces
// status information in the error text, so matching is string based; the
// buckets mirror how the service reports quota, auth and validation
// problems.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return analyzer.Transient(err)
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "API key", "API_KEY_INVALID", "UNAUTHENTICATED", "PERMISSION_DENIED", "401", "403"):
		return analyzer.Credential(err)
	case containsAny(msg, "429", "RESOURCE_EXHAUSTED", "quota"):
		return analyzer.Transient(err)
	case containsAny(msg, "500", "502", "503", "UNAVAILABLE", "INTERNAL", "overloaded", "timeout"):
		return analyzer.Transient(err)
	case containsAny(msg, "400", "INVALID_ARGUMENT"):
		return analyzer.Permanent(err)
	default:
		return analyzer.Transient(err)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
