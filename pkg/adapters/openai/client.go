// Package openai adds the "deep reasoning" locate mode: when a prompt cannot be
// resolved directly, a chat model reads the page markup and proposes a selector,
// which the wrapped locator then resolves.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// ErrNoAPIKey is returned by NewClient when no key is given or found in OPENAI_API_KEY.
var ErrNoAPIKey = errors.New("openai api key is required (argument or OPENAI_API_KEY)")

// Completer answers a single system+user exchange with the model's text reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client is a Completer backed by the OpenAI chat completions API or any
// compatible endpoint.
type Client struct {
	client oai.Client
	model  string
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	model   string
	baseURL string
}

// WithModel selects the chat model.
func WithModel(model string) ClientOption {
	return func(c *clientConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) { c.baseURL = url }
}

// NewClient creates a client. An empty apiKey falls back to OPENAI_API_KEY and
// an unset base URL to OPENAI_BASE_URL.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	cfg := clientConfig{model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.baseURL == "" {
		cfg.baseURL = os.Getenv("OPENAI_BASE_URL")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	return &Client{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one system and one user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: oai.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
