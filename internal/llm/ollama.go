package llm

import (
	"context"
	"encoding/base64"

	"github.com/go-resty/resty/v2"
)

const (
	ollamaName           = "ollama"
	ollamaDefaultModel   = "llava"
	ollamaDefaultBaseURL = "http://localhost:11434"
)

// OllamaProvider talks to a local Ollama server. It needs no API key.
type OllamaProvider struct {
	http  *resty.Client
	model string
}

type ollamaRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Format string   `json:"format,omitempty"`
	Stream bool     `json:"stream"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int64  `json:"prompt_eval_count"`
	EvalCount       int64  `json:"eval_count"`
}

// NewOllamaProvider creates a provider for the Ollama server at host.
func NewOllamaProvider(model, host string) *OllamaProvider {
	if model == "" {
		model = ollamaDefaultModel
	}
	if host == "" {
		host = ollamaDefaultBaseURL
	}
	return &OllamaProvider{http: newRESTClient(host, nil), model: model}
}

func (p *OllamaProvider) Name() string  { return ollamaName }
func (p *OllamaProvider) Model() string { return p.model }

// AnalyzeImage implements Provider.
func (p *OllamaProvider) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (*Reply, error) {
	return p.generate(ctx, ollamaRequest{
		Model:  p.model,
		Prompt: AnalysisPrompt,
		Images: []string{base64.StdEncoding.EncodeToString(data)},
		Format: "json",
	})
}

// GenerateText implements Provider.
func (p *OllamaProvider) GenerateText(ctx context.Context, prompt string) (*Reply, error) {
	return p.generate(ctx, ollamaRequest{Model: p.model, Prompt: prompt})
}

func (p *OllamaProvider) generate(ctx context.Context, req ollamaRequest) (*Reply, error) {
	result := &ollamaResponse{}
	_, err := handleError(ollamaName, p.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		Post("/api/generate"))
	if err != nil {
		return nil, err
	}

	reply := &Reply{Text: result.Response}
	if result.PromptEvalCount > 0 || result.EvalCount > 0 {
		reply.Usage.PromptTokens = result.PromptEvalCount
		reply.Usage.CompletionTokens = result.EvalCount
	} else {
		reply.Usage = estimateUsage(req.Prompt, result.Response)
	}
	return reply, nil
}
