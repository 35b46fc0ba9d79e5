package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/raine/photo-lister/internal/analysis"
	"github.com/raine/photo-lister/internal/apperr"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout    = 120 * time.Second
	DefaultMaxRetries = 2
)

// CredentialResolver turns a ProviderConfig's credential reference into an
// API key.
type CredentialResolver interface {
	ResolveCredential(cfg ProviderConfig) (string, error)
}

// ClientOptions tunes a Client. Zero values use the defaults.
type ClientOptions struct {
	// Timeout bounds a whole call, retries included.
	Timeout    time.Duration
	MaxRetries int
	Cache      *Cache
	// BackOff returns a fresh wait policy per call.
	BackOff func() backoff.BackOff
}

// Client dispatches analysis and text generation to the configured backend
// with timeout, retries and optional caching.
type Client struct {
	registry   *Registry
	creds      CredentialResolver
	cache      *Cache
	timeout    time.Duration
	maxRetries int
	newBackOff func() backoff.BackOff
}

// NewClient creates a client.
func NewClient(registry *Registry, creds CredentialResolver, opts ClientOptions) *Client {
	c := &Client{
		registry:   registry,
		creds:      creds,
		cache:      opts.Cache,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		newBackOff: opts.BackOff,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.newBackOff == nil {
		c.newBackOff = defaultBackOff
	}
	return c
}

// Timeout returns the bound applied to a whole call.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) provider(cfg ProviderConfig) (Provider, error) {
	if !cfg.Selected() {
		return nil, errors.New("no provider configured")
	}
	apiKey, err := c.creds.ResolveCredential(cfg)
	if err != nil {
		return nil, err
	}
	return c.registry.Build(cfg, apiKey)
}

// call runs op against the provider under the client's timeout and retry
// policy.
func (c *Client) call(ctx context.Context, p Provider, op func(context.Context, Provider) (*Reply, error)) (*Reply, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, attempts, err := retry(ctx, c.maxRetries, c.newBackOff(), p.Name(), func(ctx context.Context) (*Reply, error) {
		return op(ctx, p)
	})
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", c.timeout, err)
	}
	return reply, attempts, err
}

// AnalyzeImage analyzes one image with the backend cfg selects. It never
// returns an error: every failure is reported as a failure outcome.
func (c *Client) AnalyzeImage(ctx context.Context, cfg ProviderConfig, data []byte, mimeType string) analysis.Outcome {
	start := time.Now()

	if fields, ok := c.cache.Get(data, cfg); ok {
		out := analysis.Success(*fields)
		out.Provider = cfg.Provider
		out.Model = cfg.Model
		out.Cached = true
		return out.WithTiming(time.Since(start), 0)
	}

	p, err := c.provider(cfg)
	if err != nil {
		out := analysis.Failure("provider call failed: "+err.Error(), "")
		out.Provider = cfg.Provider
		out.Model = cfg.Model
		return out.WithTiming(time.Since(start), 0)
	}

	callStart := time.Now()
	reply, attempts, err := c.call(ctx, p, func(ctx context.Context, p Provider) (*Reply, error) {
		return p.AnalyzeImage(ctx, data, mimeType)
	})
	callDuration := time.Since(callStart)

	var out analysis.Outcome
	if err != nil {
		log.Error().
			Err(err).
			Str("provider", p.Name()).
			Str("model", p.Model()).
			Int("attempts", attempts).
			Msg("vision llm call failed")
		out = analysis.Failure("provider call failed: "+err.Error(), "")
	} else {
		out = analysis.Interpret(reply.Text)
		out.Usage = reply.Usage
		if out.Succeeded() {
			c.cache.Put(data, cfg, out.Result)
		}
		log.Info().
			Str("provider", p.Name()).
			Str("model", p.Model()).
			Int("attempts", attempts).
			Int64("promptTokens", reply.Usage.PromptTokens).
			Int64("completionTokens", reply.Usage.CompletionTokens).
			Bool("estimated", reply.Usage.Estimated).
			Str("status", string(out.Status)).
			Msg("vision llm call")
	}

	out.Provider = p.Name()
	out.Model = p.Model()
	return out.WithTiming(time.Since(start), callDuration)
}

// TextResult is the outcome of a text generation call.
type TextResult struct {
	Text     string         `json:"text"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Usage    analysis.Usage `json:"usage"`
}

// GenerateText sends prompt to the backend cfg selects. Failures are
// returned as provider_call errors.
func (c *Client) GenerateText(ctx context.Context, cfg ProviderConfig, prompt string) (*TextResult, error) {
	p, err := c.provider(cfg)
	if err != nil {
		return nil, apperr.ProviderCall("provider call failed: "+err.Error(), err)
	}

	reply, attempts, err := c.call(ctx, p, func(ctx context.Context, p Provider) (*Reply, error) {
		return p.GenerateText(ctx, prompt)
	})
	if err != nil {
		return nil, apperr.ProviderCall("provider call failed: "+err.Error(), err)
	}

	log.Info().
		Str("provider", p.Name()).
		Str("model", p.Model()).
		Int("attempts", attempts).
		Int64("promptTokens", reply.Usage.PromptTokens).
		Int64("completionTokens", reply.Usage.CompletionTokens).
		Bool("estimated", reply.Usage.Estimated).
		Msg("text llm call")

	return &TextResult{
		Text:     reply.Text,
		Provider: p.Name(),
		Model:    p.Model(),
		Usage:    reply.Usage,
	}, nil
}
