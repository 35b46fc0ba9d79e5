package llm

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
)

// AnalysisPrompt is the instruction sent with every image.
var AnalysisPrompt = strings.TrimSpace(dedent.Dedent(`
	Analyze this photo and identify the item so it can be sold on a secondhand marketplace.

	Respond in JSON format with these fields:
	- title: A short, descriptive listing title. Include brand and model if visible.
	- description: 2-3 sentences describing the item and notable details.
	- category: A general marketplace category, e.g. "Electronics", "Furniture", "Clothing".
	- estimated_price: A fair secondhand price as a number, without currency symbol.
	- condition: One of "new", "like new", "good", "fair", "poor".
	- tags: A list of 3-6 short search keywords.

	Example response:
	{"title": "Logitech MX Master 3 wireless mouse", "description": "Ergonomic wireless mouse with USB-C charging. Light wear on the scroll wheel.", "category": "Electronics", "estimated_price": 45, "condition": "good", "tags": ["mouse", "logitech", "wireless"]}

	Respond ONLY with the JSON object, no markdown or other text.
`))

const descriptionPrompt = `
	Write a marketplace listing description for this item.

	Title: %s
	Category: %s
	%s
	Rules:
	- 2-4 sentences, friendly and factual
	- Do not invent details that are not given
	- Return ONLY the description text, no JSON or other formatting
`

// DescriptionPrompt builds the text-generation prompt that suggests a
// description for a listing. extra holds any known details, e.g. the
// condition and tags from an earlier analysis.
func DescriptionPrompt(title, category string, extra map[string]string) string {
	var b strings.Builder
	for _, key := range []string{"condition", "tags", "current description"} {
		if v := strings.TrimSpace(extra[key]); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(key[:1])+key[1:], v)
		}
	}
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(descriptionPrompt)), title, category, b.String())
}
