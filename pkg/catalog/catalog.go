// Package catalog is the static model registry: per-model pricing, context
// windows, tiers, and quality ordering. Lookups by unknown id are hard
// failures so that billing can never silently default.
package catalog

import (
	"fmt"
	"sort"

	"github.com/scholaris-edu/scholaris/pkg/models"
)

// UnknownModelError reports a lookup for a model id that is not
// registered. Configuration or programmer error; never papered over.
type UnknownModelError struct {
	ModelID string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.ModelID)
}

// Catalog is a read-only model registry built once at startup.
type Catalog struct {
	byID  map[string]models.ModelDescriptor
	order []string
}

// New builds a Catalog from descriptors, validating registry invariants:
// unique ids, positive context windows, and zero cost on the LOCAL tier.
func New(descs ...models.ModelDescriptor) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]models.ModelDescriptor, len(descs))}
	for _, d := range descs {
		if d.ID == "" {
			return nil, fmt.Errorf("descriptor with empty id")
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", d.ID)
		}
		if d.ContextWindowTokens <= 0 {
			return nil, fmt.Errorf("model %q: context window must be positive", d.ID)
		}
		if d.Tier == models.TierLocal && (d.CostPer1KInput != 0 || d.CostPer1KOutput != 0) {
			return nil, fmt.Errorf("model %q: LOCAL tier must have zero cost", d.ID)
		}
		c.byID[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	return c, nil
}

// Default returns the built-in registry.
func Default() *Catalog {
	c, err := New(
		models.ModelDescriptor{ID: "qwen2.5-7b-local", Tier: models.TierLocal, Family: "qwen", ContextWindowTokens: 32768, QualityRank: 3},
		models.ModelDescriptor{ID: "llama-3.1-8b-local", Tier: models.TierLocal, Family: "llama", ContextWindowTokens: 16384, QualityRank: 2},
		models.ModelDescriptor{ID: "phi-3-mini-local", Tier: models.TierLocal, Family: "phi", ContextWindowTokens: 4096, QualityRank: 1},

		models.ModelDescriptor{ID: "claude-3-5-haiku", Tier: models.TierHostedStandard, Family: "claude", ContextWindowTokens: 200000, CostPer1KInput: 0.0008, CostPer1KOutput: 0.004, QualityRank: 3},
		models.ModelDescriptor{ID: "gpt-4o-mini", Tier: models.TierHostedStandard, Family: "gpt", ContextWindowTokens: 128000, CostPer1KInput: 0.00015, CostPer1KOutput: 0.0006, QualityRank: 2},
		models.ModelDescriptor{ID: "gemini-2.0-flash", Tier: models.TierHostedStandard, Family: "gemini", ContextWindowTokens: 131072, CostPer1KInput: 0.000075, CostPer1KOutput: 0.0003, QualityRank: 1},

		models.ModelDescriptor{ID: "claude-sonnet-4", Tier: models.TierHostedPremium, Family: "claude", ContextWindowTokens: 200000, CostPer1KInput: 0.003, CostPer1KOutput: 0.015, QualityRank: 3, Multimodal: true},
		models.ModelDescriptor{ID: "gpt-4o", Tier: models.TierHostedPremium, Family: "gpt", ContextWindowTokens: 128000, CostPer1KInput: 0.0025, CostPer1KOutput: 0.01, QualityRank: 2, Multimodal: true},
	)
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid built-in registry: %v", err))
	}
	return c
}

// Get returns the descriptor for a model id.
func (c *Catalog) Get(modelID string) (models.ModelDescriptor, error) {
	d, ok := c.byID[modelID]
	if !ok {
		return models.ModelDescriptor{}, &UnknownModelError{ModelID: modelID}
	}
	return d, nil
}

// List returns all descriptors in registration order.
func (c *Catalog) List() []models.ModelDescriptor {
	out := make([]models.ModelDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// ByTier returns the tier's descriptors ordered best quality first.
func (c *Catalog) ByTier(tier models.Tier) []models.ModelDescriptor {
	var out []models.ModelDescriptor
	for _, id := range c.order {
		if d := c.byID[id]; d.Tier == tier {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].QualityRank > out[j].QualityRank
	})
	return out
}

// EstimateCost computes the dollar cost of a generation against the
// registered per-1K rates. Zero for LOCAL-tier models by invariant.
func (c *Catalog) EstimateCost(inputTokens, outputTokens int, modelID string) (float64, error) {
	d, err := c.Get(modelID)
	if err != nil {
		return 0, err
	}
	return float64(inputTokens)/1000*d.CostPer1KInput +
		float64(outputTokens)/1000*d.CostPer1KOutput, nil
}
