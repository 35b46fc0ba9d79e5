package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const (
	openAIName           = "openai"
	openAIDefaultModel   = "gpt-4o-mini"
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIMaxTokens      = 1024
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	http  *resty.Client
	model string
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIMessage struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// NewOpenAIProvider creates a provider for the OpenAI API or a compatible
// server at baseURL.
func NewOpenAIProvider(apiKey, model, baseURL string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is not set")
	}
	if model == "" {
		model = openAIDefaultModel
	}
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	return &OpenAIProvider{
		http: newRESTClient(baseURL, map[string]string{
			"Authorization": "Bearer " + apiKey,
		}),
		model: model,
	}, nil
}

func (p *OpenAIProvider) Name() string  { return openAIName }
func (p *OpenAIProvider) Model() string { return p.model }

// AnalyzeImage implements Provider. The image is sent inline as a data URL.
func (p *OpenAIProvider) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (*Reply, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	return p.complete(ctx, AnalysisPrompt, []openAIContentPart{
		{Type: "text", Text: AnalysisPrompt},
		{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURL}},
	})
}

// GenerateText implements Provider.
func (p *OpenAIProvider) GenerateText(ctx context.Context, prompt string) (*Reply, error) {
	return p.complete(ctx, prompt, []openAIContentPart{{Type: "text", Text: prompt}})
}

func (p *OpenAIProvider) complete(ctx context.Context, prompt string, content []openAIContentPart) (*Reply, error) {
	result := &openAIResponse{}
	_, err := handleError(openAIName, p.http.R().
		SetContext(ctx).
		SetBody(openAIRequest{
			Model:     p.model,
			Messages:  []openAIMessage{{Role: "user", Content: content}},
			MaxTokens: openAIMaxTokens,
		}).
		SetResult(result).
		Post("/chat/completions"))
	if err != nil {
		return nil, err
	}

	if len(result.Choices) == 0 {
		return nil, errors.New("no choices in openai response")
	}

	text := result.Choices[0].Message.Content
	reply := &Reply{Text: text}
	if result.Usage != nil {
		reply.Usage.PromptTokens = result.Usage.PromptTokens
		reply.Usage.CompletionTokens = result.Usage.CompletionTokens
	} else {
		reply.Usage = estimateUsage(prompt, text)
	}
	return reply, nil
}
