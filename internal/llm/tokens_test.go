package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, int64(0), EstimateTokens(""))
	assert.Equal(t, int64(1), EstimateTokens("abc"))
	assert.Equal(t, int64(1), EstimateTokens("abcd"))
	assert.Equal(t, int64(2), EstimateTokens("abcde"))
	assert.Equal(t, int64(100), EstimateTokens(strings.Repeat("x", 400)))
	assert.Equal(t, int64(30), EstimateTokens(strings.Repeat("x", 120)))
	// Counted in characters, not bytes.
	assert.Equal(t, int64(1), EstimateTokens("äöåü"))
}

func TestEstimateUsage(t *testing.T) {
	u := estimateUsage(strings.Repeat("p", 400), strings.Repeat("r", 120))
	assert.True(t, u.Estimated)
	assert.Equal(t, int64(100), u.PromptTokens)
	assert.Equal(t, int64(30), u.CompletionTokens)
}

func TestDescriptionPrompt(t *testing.T) {
	prompt := DescriptionPrompt("Desk Lamp", "Home", map[string]string{"condition": "good", "tags": "lamp, desk"})
	assert.Contains(t, prompt, "Title: Desk Lamp")
	assert.Contains(t, prompt, "Category: Home")
	assert.Contains(t, prompt, "Condition: good")
	assert.Contains(t, prompt, "Tags: lamp, desk")
	assert.NotContains(t, prompt, "Current description")
}

func TestAnalysisPromptRequestsAllFields(t *testing.T) {
	for _, field := range []string{"title", "description", "category", "estimated_price", "condition", "tags"} {
		assert.Contains(t, AnalysisPrompt, field)
	}
}
