// Package tokens estimates token counts for text without calling any
// provider. Counts are character-based heuristics except where an exact
// counter has been registered for a model family.
package tokens

import "unicode/utf8"

// DefaultDivisor is the chars-per-token ratio assumed for most model
// families. EfficientDivisor applies to families with denser sub-word
// tokenization. Both are empirical tuning values, not guarantees.
const (
	DefaultDivisor   = 4.0
	EfficientDivisor = 4.5
)

// CountFunc is an exact tokenizer for one model family.
type CountFunc func(text string) int

// Estimator maps model families to chars-per-token divisors, with an
// optional exact counter per family. The zero divisor map falls back to
// DefaultDivisor, so an empty Estimator is usable.
type Estimator struct {
	divisors map[string]float64
	exact    map[string]CountFunc
}

// NewEstimator returns an Estimator with the built-in family divisors.
func NewEstimator() *Estimator {
	return &Estimator{
		divisors: map[string]float64{
			"qwen": EfficientDivisor,
		},
		exact: make(map[string]CountFunc),
	}
}

// SetDivisor overrides the chars-per-token divisor for a family.
// Non-positive values are ignored.
func (e *Estimator) SetDivisor(family string, divisor float64) {
	if divisor <= 0 {
		return
	}
	if e.divisors == nil {
		e.divisors = make(map[string]float64)
	}
	e.divisors[family] = divisor
}

// RegisterExact installs an exact tokenizer for a family. Count prefers it
// over the heuristic.
func (e *Estimator) RegisterExact(family string, fn CountFunc) {
	if e.exact == nil {
		e.exact = make(map[string]CountFunc)
	}
	e.exact[family] = fn
}

// Divisor returns the chars-per-token divisor for a family.
func (e *Estimator) Divisor(family string) float64 {
	if d, ok := e.divisors[family]; ok {
		return d
	}
	return DefaultDivisor
}

// Count estimates the token count of text for a model family. The estimate
// is floor(runes/divisor) and is approximate for non-Latin scripts. Empty
// text counts as zero tokens. Never fails, whatever the input bytes.
func (e *Estimator) Count(family, text string) int {
	if text == "" {
		return 0
	}
	if fn, ok := e.exact[family]; ok {
		return fn(text)
	}
	runes := utf8.RuneCountInString(text)
	return int(float64(runes) / e.Divisor(family))
}
