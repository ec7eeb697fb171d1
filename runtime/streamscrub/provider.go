package streamscrub

import (
	"bytes"
	"sort"
)

// SecretProvider runs a second scrubbing pass over a chunk after the
// scrubber's own pattern table, per spec.md §4.C8: it lets the holder of
// live secret material (core/secret's registry, in this binary) redact
// without ever handing the scrubber the raw patterns to store.
//
// A provider never reveals what it matched — HandleChunk receives the chunk
// and returns the sanitized result; the scrubber never sees the patterns
// themselves. Implementations may replace, reject (fail-fast), or log
// before replacing; RegisterSecret-based pattern matching covers the common
// replace case, so most providers exist to source patterns dynamically
// (e.g. from a live secret registry) rather than to change that behavior.
type SecretProvider interface {
	// HandleChunk returns chunk with every secret the provider recognizes
	// replaced. Implementations must use longest-match replacement (so an
	// overlapping shorter pattern never leaves a suffix of a longer one
	// exposed), process the whole chunk in one call, and be safe for
	// concurrent and repeated invocation.
	HandleChunk(chunk []byte) (processed []byte, err error)

	// MaxSecretLength reports the longest pattern the provider currently
	// knows about, in bytes. The scrubber holds back (MaxSecretLength - 1)
	// bytes between writes so a pattern split across a chunk boundary is
	// still caught on the next call. Return 0 if no patterns are registered.
	MaxSecretLength() int
}

// Pattern represents a secret to find and replace.
type Pattern struct {
	Value       []byte // Secret bytes to find
	Placeholder []byte // Replacement bytes
}

// PatternSource provides patterns dynamically.
// This function is called each time HandleChunk is invoked,
// allowing the pattern list to change over time.
type PatternSource func() []Pattern

// NewPatternProvider builds a SecretProvider around a pattern source that is
// re-queried on every HandleChunk call, so the pattern list can evolve (new
// secrets registered, old ones wiped) without rebuilding the provider. The
// core/secret registry's Patterns method is the source cmd/naab wires here.
func NewPatternProvider(source PatternSource) SecretProvider {
	return &patternProvider{
		getPatterns: source,
	}
}

// patternProvider implements SecretProvider using a pattern source.
type patternProvider struct {
	getPatterns PatternSource
}

// HandleChunk implements SecretProvider interface.
func (p *patternProvider) HandleChunk(chunk []byte) ([]byte, error) {
	// Get current patterns from source
	patterns := p.getPatterns()

	if len(patterns) == 0 {
		return chunk, nil
	}

	// Sort by descending length (longest first)
	// This ensures overlapping secrets use longest match
	sort.Slice(patterns, func(i, j int) bool {
		return len(patterns[i].Value) > len(patterns[j].Value)
	})

	// Replace all patterns (longest first)
	result := chunk
	for _, pattern := range patterns {
		if len(pattern.Value) > 0 {
			result = bytes.ReplaceAll(result, pattern.Value, pattern.Placeholder)
		}
	}

	return result, nil
}

// MaxSecretLength implements SecretProvider interface.
func (p *patternProvider) MaxSecretLength() int {
	patterns := p.getPatterns()

	maxLen := 0
	for _, pattern := range patterns {
		if len(pattern.Value) > maxLen {
			maxLen = len(pattern.Value)
		}
	}

	return maxLen
}

// NewPatternProviderWithVariants wraps source so each pattern also matches
// its hex, base64, percent-encoded, and separator-inserted forms — defense
// in depth against a secret re-entering output in an encoded shape after
// crossing a foreign executor boundary (spec.md §4.C8).
func NewPatternProviderWithVariants(source PatternSource) SecretProvider {
	expandedSource := func() []Pattern {
		base := source()
		var expanded []Pattern

		for _, pattern := range base {
			// Add original pattern
			expanded = append(expanded, pattern)

			// Add encoding variants
			expanded = append(expanded, generateVariants(pattern)...)
		}

		return expanded
	}

	return &patternProvider{
		getPatterns: expandedSource,
	}
}

// generateVariants creates encoding variants of a pattern for defense-in-depth.
func generateVariants(pattern Pattern) []Pattern {
	var variants []Pattern
	secret := pattern.Value
	placeholder := pattern.Placeholder

	// Hex: lowercase and uppercase
	hexLower := toHex(secret)
	hexUpper := toUpperHex(hexLower)
	variants = append(variants, Pattern{Value: []byte(hexLower), Placeholder: placeholder})
	variants = append(variants, Pattern{Value: []byte(hexUpper), Placeholder: placeholder})

	// Base64: standard, raw, and URL encodings
	b64Std := toBase64(secret)
	b64Raw := toBase64Raw(secret)
	b64URL := toBase64URL(secret)
	variants = append(variants, Pattern{Value: []byte(b64Std), Placeholder: placeholder})
	variants = append(variants, Pattern{Value: []byte(b64Raw), Placeholder: placeholder})
	variants = append(variants, Pattern{Value: []byte(b64URL), Placeholder: placeholder})

	// Percent encoding: lowercase and uppercase
	percentLower := toPercentEncoding(secret, false)
	percentUpper := toPercentEncoding(secret, true)
	variants = append(variants, Pattern{Value: []byte(percentLower), Placeholder: placeholder})
	variants = append(variants, Pattern{Value: []byte(percentUpper), Placeholder: placeholder})

	// Separator-inserted variants (common in formatted output)
	separators := []string{"-", "_", ":", ".", " "}
	for _, sep := range separators {
		variant := insertSeparators(secret, sep)
		variants = append(variants, Pattern{Value: []byte(variant), Placeholder: placeholder})
	}

	return variants
}
