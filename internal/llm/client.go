// Package llm builds provider requests and parses provider responses for the
// supported LLM vendors.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// LLMClient is the interface used by callers to run one completion.
type LLMClient interface {
	// Generate sends r and returns the provider's answer.
	Generate(ctx context.Context, r Request) (Answer, error)
}

// Client implements LLMClient for any supported provider.
type Client struct {
	provider  Provider
	apiKey    string
	model     string
	baseURL   string
	transport Transport
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the provider's API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithTransport replaces the default HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithTimeout sets the timeout of the default HTTP transport.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.transport = NewHTTPTransport(timeout)
	}
}

// NewClient returns a Client for provider. An empty model selects the
// provider's default.
func NewClient(provider Provider, apiKey, model string, opts ...Option) (*Client, error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key for %s", provider)
	}
	if model == "" {
		model = provider.DefaultModel()
	}

	c := &Client{
		provider:  provider,
		apiKey:    apiKey,
		model:     model,
		baseURL:   provider.BaseURL(),
		transport: NewHTTPTransport(DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Provider returns the client's provider.
func (c *Client) Provider() Provider { return c.provider }

// Model returns the model requests are sent to.
func (c *Client) Model() string { return c.model }

// Generate builds r for the client's provider, sends it and parses the reply.
// r.Provider and r.Model are taken from the client.
func (c *Client) Generate(ctx context.Context, r Request) (Answer, error) {
	r.Provider = c.provider
	r.Model = c.model

	d, err := c.provider.dialect()
	if err != nil {
		return Answer{}, err
	}
	body, err := BuildRequest(r)
	if err != nil {
		return Answer{}, fmt.Errorf("build request: %w", err)
	}

	url := d.endpoint(c.baseURL, c.model)
	log := logrus.WithFields(logrus.Fields{"provider": c.provider.String(), "model": c.model})
	log.WithField("url", url).Debugf("Request body: %s", body)

	start := time.Now()
	status, raw, err := c.transport.Post(ctx, url, d.headers(c.apiKey), body)
	if err != nil {
		return Answer{}, err
	}
	log.WithFields(logrus.Fields{"status": status, "elapsed": time.Since(start).Round(time.Millisecond)}).
		Debugf("Response body: %s", raw)

	if status < 200 || status > 299 {
		apiErr := &APIError{Provider: c.provider, Status: status, Body: raw}
		if msg, ok := errorMessage(newFieldReader(raw)); ok {
			apiErr.Message = msg
		}
		return Answer{}, apiErr
	}

	answer, err := ParseResponse(c.provider, raw)
	if err != nil {
		return Answer{}, err
	}
	answer.Model = c.model
	log.WithFields(logrus.Fields{
		"prompt_tokens":     answer.Usage.PromptTokens,
		"completion_tokens": answer.Usage.CompletionTokens,
	}).Infof("Answer received in %s", time.Since(start).Round(time.Millisecond))
	return answer, nil
}
