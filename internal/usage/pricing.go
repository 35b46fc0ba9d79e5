package usage

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency all prices are quoted in.
const Currency = "USD"

var perMillion = decimal.NewFromInt(1_000_000)

// Price is the cost of a model per one million tokens.
type Price struct {
	InputPerMillion  decimal.Decimal
	OutputPerMillion decimal.Decimal
}

// InputRate returns the cost of a single prompt token.
func (p Price) InputRate() decimal.Decimal {
	return p.InputPerMillion.Div(perMillion)
}

// OutputRate returns the cost of a single completion token.
func (p Price) OutputRate() decimal.Decimal {
	return p.OutputPerMillion.Div(perMillion)
}

func price(input, output string) Price {
	return Price{
		InputPerMillion:  decimal.RequireFromString(input),
		OutputPerMillion: decimal.RequireFromString(output),
	}
}

// PricingTable maps model names to prices.
type PricingTable map[string]Price

// variantSuffix matches what providers append to a listed model name for a
// snapshot of the same model: a date ("-2024-08-06", "-20241022"), "-latest"
// or an Ollama style tag (":13b").
var variantSuffix = regexp.MustCompile(`^(-\d{4}-\d{2}-\d{2}|-\d{8}|-latest|:[a-z0-9._-]+)$`)

// Lookup finds the price for a model. Names are matched case-insensitively.
// A listed name followed by a variant suffix gets the listed price; any other
// name is unknown, even if a listed name is a prefix of it.
func (t PricingTable) Lookup(model string) (Price, bool) {
	model = strings.ToLower(strings.TrimSpace(model))
	if p, ok := t[model]; ok {
		return p, true
	}
	for name, p := range t {
		if strings.HasPrefix(model, name) && variantSuffix.MatchString(model[len(name):]) {
			return p, true
		}
	}
	return Price{}, false
}

// DefaultPricing holds list prices for the models the providers default to.
// Local models (Ollama) are intentionally absent and cost nothing.
func DefaultPricing() PricingTable {
	return PricingTable{
		"gemini-3-flash-preview":  price("0.50", "3.00"),
		"gemini-2.5-flash":        price("0.30", "2.50"),
		"gemini-2.5-flash-lite":   price("0.075", "0.30"),
		"gemini-2.5-pro":          price("1.25", "10.00"),
		"gpt-4o":                  price("2.50", "10.00"),
		"gpt-4o-mini":             price("0.15", "0.60"),
		"gpt-4.1":                 price("2.00", "8.00"),
		"gpt-4.1-mini":            price("0.40", "1.60"),
		"gpt-5.2":                 price("1.75", "14.00"),
		"claude-3-5-haiku-latest": price("0.80", "4.00"),
		"claude-haiku-4-5":        price("1.00", "5.00"),
		"claude-sonnet-4-5":       price("3.00", "15.00"),
	}
}
