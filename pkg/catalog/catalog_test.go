package catalog

import (
	"errors"
	"testing"

	"github.com/scholaris-edu/scholaris/pkg/models"
)

func TestGetUnknownModel(t *testing.T) {
	c := Default()

	_, err := c.Get("no-such-model")
	if err == nil {
		t.Fatal("Get(no-such-model) error = nil, want UnknownModelError")
	}
	var ume *UnknownModelError
	if !errors.As(err, &ume) {
		t.Fatalf("Get(no-such-model) error = %v, want *UnknownModelError", err)
	}
	if ume.ModelID != "no-such-model" {
		t.Errorf("UnknownModelError.ModelID = %q, want %q", ume.ModelID, "no-such-model")
	}
}

func TestLocalTierCostInvariant(t *testing.T) {
	c := Default()
	for _, d := range c.ByTier(models.TierLocal) {
		cost, err := c.EstimateCost(100000, 100000, d.ID)
		if err != nil {
			t.Fatalf("EstimateCost(%s): %v", d.ID, err)
		}
		if cost != 0 {
			t.Errorf("EstimateCost(%s) = %v, want 0 for LOCAL tier", d.ID, cost)
		}
	}

	_, err := New(models.ModelDescriptor{
		ID: "bad-local", Tier: models.TierLocal, ContextWindowTokens: 4096, CostPer1KInput: 0.001,
	})
	if err == nil {
		t.Error("New with priced LOCAL model: error = nil, want invariant violation")
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		descs []models.ModelDescriptor
	}{
		{"empty id", []models.ModelDescriptor{{Tier: models.TierLocal, ContextWindowTokens: 10}}},
		{"duplicate id", []models.ModelDescriptor{
			{ID: "m", Tier: models.TierLocal, ContextWindowTokens: 10},
			{ID: "m", Tier: models.TierLocal, ContextWindowTokens: 10},
		}},
		{"zero window", []models.ModelDescriptor{{ID: "m", Tier: models.TierLocal}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.descs...); err == nil {
				t.Error("New() error = nil, want validation failure")
			}
		})
	}
}

func TestEstimateCost(t *testing.T) {
	c := Default()

	// gpt-4o-mini: 0.00015 in, 0.0006 out per 1K.
	cost, err := c.EstimateCost(2000, 1000, "gpt-4o-mini")
	if err != nil {
		t.Fatalf("EstimateCost: %v", err)
	}
	want := 2*0.00015 + 1*0.0006
	if cost != want {
		t.Errorf("EstimateCost(2000, 1000, gpt-4o-mini) = %v, want %v", cost, want)
	}
}

func TestByTierQualityOrder(t *testing.T) {
	c := Default()
	for _, tier := range []models.Tier{models.TierLocal, models.TierHostedStandard, models.TierHostedPremium} {
		ds := c.ByTier(tier)
		if len(ds) == 0 {
			t.Fatalf("ByTier(%s) returned no models", tier)
		}
		for i := 1; i < len(ds); i++ {
			if ds[i-1].QualityRank < ds[i].QualityRank {
				t.Errorf("ByTier(%s): rank order broken at %d: %v then %v", tier, i, ds[i-1].QualityRank, ds[i].QualityRank)
			}
		}
		for _, d := range ds {
			if d.Tier != tier {
				t.Errorf("ByTier(%s) returned model %s of tier %s", tier, d.ID, d.Tier)
			}
		}
	}
}
