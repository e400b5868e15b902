// Package fitter shrinks prompt text to fit a model's context window while
// reserving room for the response. Truncation keeps the head and tail of
// the text and drops the middle, since retrieval context tends to carry its
// framing at the start and its conclusion at the end.
package fitter

import (
	"fmt"

	"github.com/scholaris-edu/scholaris/pkg/catalog"
	"github.com/scholaris-edu/scholaris/pkg/models"
	"github.com/scholaris-edu/scholaris/pkg/tokens"
)

// Marker is inserted where middle content was removed.
const Marker = "[...content truncated...]"

// headShare is the fraction of the character budget taken from the start
// of the text; the rest, minus the marker, comes from the end.
const headShare = 0.6

// safetyMargin shaves the character budget to absorb estimation error in
// the chars-per-token heuristic.
const safetyMargin = 0.95

// Fitter truncates text to model windows using the estimator's divisors.
type Fitter struct {
	cat *catalog.Catalog
	est *tokens.Estimator
}

// New creates a Fitter over the given catalog and estimator.
func New(cat *catalog.Catalog, est *tokens.Estimator) *Fitter {
	return &Fitter{cat: cat, est: est}
}

// Fit returns text reduced so that its token estimate plus
// reservedOutputTokens fits within the model's context window. Text that
// already fits is returned unchanged.
func (f *Fitter) Fit(text, modelID string, reservedOutputTokens int) (string, error) {
	desc, err := f.cat.Get(modelID)
	if err != nil {
		return "", err
	}
	if reservedOutputTokens < 0 {
		reservedOutputTokens = 0
	}
	budgetTokens := desc.ContextWindowTokens - reservedOutputTokens
	if budgetTokens <= 0 {
		return "", fmt.Errorf("model %q: reserved output %d leaves no room in window %d",
			modelID, reservedOutputTokens, desc.ContextWindowTokens)
	}

	if f.est.Count(desc.Family, text)+reservedOutputTokens <= desc.ContextWindowTokens {
		return text, nil
	}

	return truncateMiddle(text, f.charBudget(desc, budgetTokens)), nil
}

// FitRequest assembles system prompt, retrieval context, and user prompt
// for a model, shrinking only the context portion. The system and user
// prompts are never cut; if they alone overflow the window, the whole
// assembled text goes through the same head/tail reduction.
func (f *Fitter) FitRequest(req models.RoutingRequest, modelID string) (string, error) {
	prompt := req.Prompt
	if req.ContextText != "" {
		desc, err := f.cat.Get(modelID)
		if err != nil {
			return "", err
		}
		fixed := f.est.Count(desc.Family, req.SystemPrompt) + f.est.Count(desc.Family, req.Prompt)
		ctxBudget := desc.ContextWindowTokens - req.MaxOutputTokens - fixed
		if ctxBudget > 0 {
			ctxText := req.ContextText
			if f.est.Count(desc.Family, ctxText) > ctxBudget {
				ctxText = truncateMiddle(ctxText, f.charBudget(desc, ctxBudget))
			}
			prompt = ctxText + "\n\n" + req.Prompt
		}
	}
	return f.Fit(prompt, modelID, req.MaxOutputTokens)
}

// charBudget converts a token budget to a rune budget using the family
// divisor, with the safety margin applied.
func (f *Fitter) charBudget(desc models.ModelDescriptor, budgetTokens int) int {
	return int(float64(budgetTokens) * f.est.Divisor(desc.Family) * safetyMargin)
}

// truncateMiddle cuts text to at most charBudget runes, keeping head and
// tail around the marker. Budgets too small for the marker fall back to a
// plain prefix cut.
func truncateMiddle(text string, charBudget int) string {
	runes := []rune(text)
	if charBudget >= len(runes) {
		return text
	}
	if charBudget <= 0 {
		return ""
	}

	marker := []rune(Marker)
	headLen := int(float64(charBudget) * headShare)
	tailLen := charBudget - headLen - len(marker)
	if charBudget <= len(marker) || tailLen <= 0 {
		return string(runes[:charBudget])
	}

	out := make([]rune, 0, charBudget)
	out = append(out, runes[:headLen]...)
	out = append(out, marker...)
	out = append(out, runes[len(runes)-tailLen:]...)
	return string(out)
}
