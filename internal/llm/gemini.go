package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const (
	geminiName         = "gemini"
	geminiDefaultModel = "gemini-2.5-flash"
)

// GeminiProvider uses Google's Gemini API through the genai SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// GeminiOptions configures a GeminiProvider. BaseURL is only set in tests.
type GeminiOptions struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, opts GeminiOptions) (*GeminiProvider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini API key is not set")
	}
	if opts.Model == "" {
		opts.Model = geminiDefaultModel
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: opts.Model}, nil
}

func (g *GeminiProvider) Name() string  { return geminiName }
func (g *GeminiProvider) Model() string { return g.model }

// AnalyzeImage implements Provider.
func (g *GeminiProvider) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (*Reply, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(AnalysisPrompt),
		{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
	}
	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	return g.generate(ctx, parts, AnalysisPrompt, config)
}

// GenerateText implements Provider.
func (g *GeminiProvider) GenerateText(ctx context.Context, prompt string) (*Reply, error) {
	return g.generate(ctx, []*genai.Part{genai.NewPartFromText(prompt)}, prompt, nil)
}

func (g *GeminiProvider) generate(ctx context.Context, parts []*genai.Part, prompt string, config *genai.GenerateContentConfig) (*Reply, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no response from Gemini")
	}

	text := result.Text()
	reply := &Reply{Text: text}
	if md := result.UsageMetadata; md != nil && (md.PromptTokenCount > 0 || md.CandidatesTokenCount > 0) {
		reply.Usage.PromptTokens = int64(md.PromptTokenCount)
		reply.Usage.CompletionTokens = int64(md.CandidatesTokenCount)
	} else {
		reply.Usage = estimateUsage(prompt, text)
	}
	return reply, nil
}
