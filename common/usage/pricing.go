// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package usage

import "strings"

// modelRate is the cost in cents per 1K tokens, split by direction.
type modelRate struct {
	inputCentsPer1K  float64
	outputCentsPer1K float64
}

// modelRates pins published list prices. Unknown models fall back to
// the provider default so cost attribution never silently zeroes out.
var modelRates = map[string]modelRate{
	// OpenAI
	"gpt-4o":        {0.25, 1.0},
	"gpt-4o-mini":   {0.015, 0.06},
	"gpt-4-turbo":   {1.0, 3.0},
	"gpt-3.5-turbo": {0.05, 0.15},

	// Anthropic
	"claude-3-5-sonnet": {0.3, 1.5},
	"claude-3-5-haiku":  {0.08, 0.4},
	"claude-3-opus":     {1.5, 7.5},
	"claude-3-haiku":    {0.025, 0.125},

	// Bedrock model IDs resolve through prefix matching below.
	"anthropic.claude-3-5-sonnet": {0.3, 1.5},
	"anthropic.claude-3-haiku":    {0.025, 0.125},
	"amazon.titan-text-express":   {0.02, 0.06},
}

var providerDefaults = map[string]modelRate{
	"openai":    {0.1, 0.3},
	"anthropic": {0.3, 1.5},
	"bedrock":   {0.3, 1.5},
}

// rateFor resolves the best matching rate by exact model, then longest
// model prefix, then the provider default.
func rateFor(provider, model string) modelRate {
	if rate, ok := modelRates[model]; ok {
		return rate
	}

	best := ""
	for name := range modelRates {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return modelRates[best]
	}

	if rate, ok := providerDefaults[strings.ToLower(provider)]; ok {
		return rate
	}
	return modelRate{0.1, 0.3}
}

// CalculateCost returns the cost in whole cents for one completion,
// rounded up so metering never under-bills.
func CalculateCost(provider, model string, inputTokens, outputTokens int) int {
	rate := rateFor(provider, model)
	cents := float64(inputTokens)/1000.0*rate.inputCentsPer1K +
		float64(outputTokens)/1000.0*rate.outputCentsPer1K
	if cents <= 0 {
		return 0
	}

	whole := int(cents)
	if cents > float64(whole) {
		whole++
	}
	return whole
}
