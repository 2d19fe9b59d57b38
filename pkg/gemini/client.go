// Package gemini is a single-attempt text generation client on the
// official genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	genai "google.golang.org/genai"
)

// ErrEmptyResponse marks a reply with no candidate text.
var ErrEmptyResponse = eris.New("gemini: response has no candidate text")

// Client generates text from a single prompt.
type Client interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// APIError is a non-2xx reply from the API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*genai.ClientConfig)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *genai.ClientConfig) { c.HTTPOptions.BaseURL = url }
}

// WithHTTPClient overrides the http.Client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *genai.ClientConfig) { c.HTTPClient = hc }
}

type sdkClient struct {
	cli *genai.Client
}

// NewClient creates a Gemini API client for apiKey.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, o := range opts {
		o(cfg)
	}

	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{cli: cli}, nil
}

func (c *sdkClient) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.cli.Models.GenerateContent(ctx, model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}}},
		nil,
	)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &APIError{StatusCode: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
		}
		return "", eris.Wrap(err, "gemini: generate content")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
