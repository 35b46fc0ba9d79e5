// Package analysis turns free-form provider replies into structured listing
// suggestions.
package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Interpret extracts and validates a structured result from a provider reply.
// Replies may wrap the JSON object in prose or markdown fences. Anything that
// does not yield a valid object becomes a Failure that keeps the original text.
func Interpret(text string) Outcome {
	for _, candidate := range jsonCandidates(text) {
		fields, err := parseFields(candidate)
		if err == nil {
			return Success(*fields)
		}
	}
	return Failure(ReasonUnparseable, text)
}

// jsonCandidates returns the balanced {...} spans of text in order of their
// opening brace, followed by the greedy first-{ to last-} span as a fallback.
func jsonCandidates(text string) []string {
	var candidates []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			candidates = append(candidates, s)
		}
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		if end := matchingBrace(text, i); end > i {
			add(text[i : end+1])
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		add(text[start : end+1])
	}
	return candidates
}

// matchingBrace returns the index of the brace closing the one at start,
// skipping braces inside JSON string literals. Returns -1 when unbalanced.
func matchingBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseFields(candidate string) (*Fields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}

	title := stringField(raw["title"])
	if title == "" {
		return nil, fmt.Errorf("missing title")
	}

	priceRaw, ok := raw["estimated_price"]
	if !ok || strings.TrimSpace(string(priceRaw)) == "null" {
		return nil, fmt.Errorf("missing estimated_price")
	}
	// Models sometimes quote the price ("12.50", "€12"). A string that still
	// parses to a non-negative number is accepted; anything else fails.
	price, err := parsePrice(priceRaw)
	if err != nil {
		return nil, err
	}

	return &Fields{
		Title:          title,
		Description:    stringField(raw["description"]),
		Category:       stringField(raw["category"]),
		EstimatedPrice: price,
		Condition:      stringField(raw["condition"]),
		Tags:           tagsField(raw["tags"]),
	}, nil
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// parsePrice accepts a JSON number or a numeric string with an optional
// currency symbol, e.g. "12.50" or "€12".
func parsePrice(raw json.RawMessage) (float64, error) {
	var price float64
	if err := json.Unmarshal(raw, &price); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("estimated_price is not numeric: %s", raw)
		}
		s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "$€£"))
		s = strings.ReplaceAll(s, ",", ".")
		price, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("estimated_price is not numeric: %q", s)
		}
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, fmt.Errorf("estimated_price out of range: %v", price)
	}
	return price, nil
}

// tagsField accepts a list of strings or a comma-separated string.
func tagsField(raw json.RawMessage) []string {
	tags := []string{}
	if len(raw) == 0 {
		return tags
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return tags
		}
		list = strings.Split(s, ",")
	}
	for _, t := range list {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
