// Package llm abstracts over the AI backends that analyze listing photos.
package llm

import (
	"context"
	"fmt"

	"github.com/raine/photo-lister/internal/analysis"
)

// Reply is the raw text a backend produced and what it cost.
type Reply struct {
	Text  string
	Usage analysis.Usage
}

// Provider is a single AI backend bound to one model.
type Provider interface {
	// Name is the registry name of the backend, e.g. "gemini".
	Name() string
	Model() string
	// AnalyzeImage sends the listing instruction prompt with one image.
	AnalyzeImage(ctx context.Context, data []byte, mimeType string) (*Reply, error)
	// GenerateText sends a text-only prompt.
	GenerateText(ctx context.Context, prompt string) (*Reply, error)
}

// StatusError is a non-2xx answer from a backend's HTTP API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}
