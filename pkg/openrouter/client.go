// Package openrouter is a single-attempt client for the OpenRouter
// chat-completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultReferer = "http://localhost:8000"
	defaultTitle   = "Multiview"

	maxErrorBody = 4096
)

// ErrMalformedResponse marks a 200 response whose body is not a usable
// completion.
var ErrMalformedResponse = eris.New("openrouter: malformed response")

// Client performs chat completions. The API key is supplied per call so
// one client can serve many callers.
type Client interface {
	ChatCompletion(ctx context.Context, apiKey string, req ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// ChatCompletionRequest is the request body for POST /chat/completions.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// Message is one chat turn. Content is a pointer in responses so that a
// missing field can be told apart from an empty answer.
type Message struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// UserMessage builds a single user-role message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: &content}
}

// ChatCompletionResponse is the response from POST /chat/completions.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a single completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FirstContent returns choices[0].message.content.
func (r *ChatCompletionResponse) FirstContent() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", eris.Wrap(ErrMalformedResponse, "no choices")
	}
	content := r.Choices[0].Message.Content
	if content == nil {
		return "", eris.Wrap(ErrMalformedResponse, "choices[0].message.content missing")
	}
	return *content, nil
}

// StatusError is a non-200 reply. Body is kept for diagnostics.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openrouter: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithReferer sets the HTTP-Referer identification header.
func WithReferer(referer string) Option {
	return func(c *httpClient) {
		if referer != "" {
			c.referer = referer
		}
	}
}

// WithTitle sets the X-Title identification header.
func WithTitle(title string) Option {
	return func(c *httpClient) {
		if title != "" {
			c.title = title
		}
	}
}

type httpClient struct {
	baseURL string
	referer string
	title   string
	http    *http.Client
}

// NewClient creates an OpenRouter client. Timeouts come from the caller's
// context.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		referer: defaultReferer,
		title:   defaultTitle,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ChatCompletion(ctx context.Context, apiKey string, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("HTTP-Referer", c.referer)
	httpReq.Header.Set("X-Title", c.title)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: read response")
	}

	if resp.StatusCode != http.StatusOK {
		b := string(respBody)
		if len(b) > maxErrorBody {
			b = b[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: b}
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "unmarshal response: %v", err)
	}

	return &result, nil
}
