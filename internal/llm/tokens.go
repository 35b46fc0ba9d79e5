package llm

import (
	"unicode/utf8"

	"github.com/raine/photo-lister/internal/analysis"
)

// EstimateTokens approximates the token count of text as one token per four
// characters, rounded up.
func EstimateTokens(text string) int64 {
	n := int64(utf8.RuneCountInString(text))
	return (n + 3) / 4
}

// estimateUsage is used when a backend does not report token counts.
func estimateUsage(prompt, reply string) analysis.Usage {
	return analysis.Usage{
		PromptTokens:     EstimateTokens(prompt),
		CompletionTokens: EstimateTokens(reply),
		Estimated:        true,
	}
}
