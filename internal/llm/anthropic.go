package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	anthropicName           = "anthropic"
	anthropicDefaultModel   = "claude-3-5-haiku-latest"
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 1024
)

// AnthropicProvider uses the Anthropic Messages API.
type AnthropicProvider struct {
	http  *resty.Client
	model string
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropicProvider creates an Anthropic-backed provider.
func NewAnthropicProvider(apiKey, model, baseURL string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key is not set")
	}
	if model == "" {
		model = anthropicDefaultModel
	}
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &AnthropicProvider{
		http: newRESTClient(baseURL, map[string]string{
			"x-api-key":         apiKey,
			"anthropic-version": anthropicVersion,
		}),
		model: model,
	}, nil
}

func (p *AnthropicProvider) Name() string  { return anthropicName }
func (p *AnthropicProvider) Model() string { return p.model }

// AnalyzeImage implements Provider.
func (p *AnthropicProvider) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (*Reply, error) {
	return p.send(ctx, AnalysisPrompt, []anthropicBlock{
		{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: mimeType,
				Data:      base64.StdEncoding.EncodeToString(data),
			},
		},
		{Type: "text", Text: AnalysisPrompt},
	})
}

// GenerateText implements Provider.
func (p *AnthropicProvider) GenerateText(ctx context.Context, prompt string) (*Reply, error) {
	return p.send(ctx, prompt, []anthropicBlock{{Type: "text", Text: prompt}})
}

func (p *AnthropicProvider) send(ctx context.Context, prompt string, content []anthropicBlock) (*Reply, error) {
	result := &anthropicResponse{}
	_, err := handleError(anthropicName, p.http.R().
		SetContext(ctx).
		SetBody(anthropicRequest{
			Model:     p.model,
			MaxTokens: anthropicMaxTokens,
			Messages:  []anthropicMessage{{Role: "user", Content: content}},
		}).
		SetResult(result).
		Post("/v1/messages"))
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, block := range result.Content {
		if block.Type == "text" {
			texts = append(texts, block.Text)
		}
	}
	if len(texts) == 0 {
		return nil, errors.New("no text content in anthropic response")
	}

	text := strings.Join(texts, "")
	reply := &Reply{Text: text}
	if result.Usage.InputTokens > 0 || result.Usage.OutputTokens > 0 {
		reply.Usage.PromptTokens = result.Usage.InputTokens
		reply.Usage.CompletionTokens = result.Usage.OutputTokens
	} else {
		reply.Usage = estimateUsage(prompt, text)
	}
	return reply, nil
}
