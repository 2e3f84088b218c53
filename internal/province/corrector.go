// Package province corrects noisy province and city names extracted from
// waybill images to canonical Iraqi province names. Correction combines an
// exact misspelling table, a city-to-province table and a fuzzy fallback,
// memoized per corrector.
package province

import (
	"strings"
	"sync"

	"github.com/zombor/waybill-tracker/internal/fuzzy"
)

// tokenDelimiters are the characters ExtractFromText splits on, in addition
// to whitespace. Includes the Arabic comma.
const tokenDelimiters = ",،.;:"

// Corrector maps raw province/city tokens to canonical province names. The
// zero value is not usable; create one with NewCorrector. Safe for
// concurrent use.
type Corrector struct {
	mu    sync.Mutex
	cache map[string]string
}

// NewCorrector creates a Corrector with an empty memo cache.
func NewCorrector() *Corrector {
	return &Corrector{
		cache: make(map[string]string),
	}
}

// CorrectName resolves a raw province or city token to a canonical province
// name. Lookup order: memo cache, misspelling table, city table, fuzzy match
// against the canonical list. Unrecognized input is returned trimmed but
// otherwise unchanged. Empty input returns "".
func (c *Corrector) CorrectName(raw string) string {
	if raw == "" {
		return ""
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ToLower(trimmed)

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.cache[normalized]; ok {
		return cached
	}

	corrected := c.resolve(normalized, trimmed)
	c.cache[normalized] = corrected
	return corrected
}

// resolve computes the correction for a normalized token. The caller holds
// the cache lock and caches the result.
func (c *Corrector) resolve(normalized, trimmed string) string {
	if canonical, ok := corrections[normalized]; ok {
		return canonical
	}

	if owner, ok := cities[normalized]; ok {
		return owner
	}

	if match := fuzzy.FindClosestMatch(normalized, Canonical); match != "" {
		return match
	}

	// No correction applies. Return the trimmed original, preserving its
	// casing, so callers can surface exactly what was extracted.
	return trimmed
}

// ExtractFromText tokenizes free text and returns the distinct canonical
// provinces it mentions, in first-occurrence order. Tokens that do not
// resolve to a canonical province are ignored.
func (c *Corrector) ExtractFromText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := strings.FieldsFunc(text, func(r rune) bool {
		if strings.ContainsRune(tokenDelimiters, r) {
			return true
		}
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	var provinces []string
	seen := make(map[string]bool)
	for _, token := range tokens {
		corrected := c.CorrectName(token)
		if corrected == "" || seen[corrected] {
			continue
		}
		if !isCanonical(corrected) {
			continue
		}
		seen[corrected] = true
		provinces = append(provinces, corrected)
	}

	return provinces
}

// ClearCache empties the memo cache.
func (c *Corrector) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]string)
}

// CacheSize returns the number of memoized corrections. Used by tests to
// verify the cache-aside path.
func (c *Corrector) CacheSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}
