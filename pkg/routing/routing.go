// Package routing picks the model candidates for a generation request.
// The decision weighs task type, user role, complexity, connectivity, and
// what is left of the budgets. Being over budget never blocks a request;
// it demotes routing to the free local tier.
package routing

import (
	"fmt"
	"sort"

	"github.com/scholaris-edu/scholaris/pkg/catalog"
	"github.com/scholaris-edu/scholaris/pkg/models"
	"github.com/scholaris-edu/scholaris/pkg/tokens"
)

// comfortFactor is the headroom a model's window must have over the
// estimated prompt before the model counts as a comfortable fit.
const comfortFactor = 1.25

// Decision reasons, recorded for diagnostics and the dry-run CLI.
const (
	ReasonForcedModel     = "forced_model"
	ReasonNoConnectivity  = "no_hosted_connectivity"
	ReasonDailyCap        = "daily_cap_exceeded"
	ReasonMultimodal      = "multimodal_premium"
	ReasonMultimodalDemo  = "multimodal_demoted"
	ReasonHighStakesTask  = "high_stakes_task"
	ReasonStudentTutoring = "student_basic_tutoring"
	ReasonDefault         = "default"
)

// BudgetView is the slice of ledger state the policy reads.
type BudgetView interface {
	IsUserWithinDailyCap(userID string, role models.Role) bool
	RemainingMonthlyBudget() float64
}

// Policy derives routing decisions from the catalog and budget limits.
type Policy struct {
	cat    *catalog.Catalog
	est    *tokens.Estimator
	limits models.BudgetLimits
}

// New creates a Policy.
func New(cat *catalog.Catalog, est *tokens.Estimator, limits models.BudgetLimits) *Policy {
	return &Policy{cat: cat, est: est, limits: limits}
}

// Route returns the ordered candidate list for a request: primary first,
// fallbacks after, the local tier always last. The decision is recomputed
// per request since ledger state moves underneath it.
func (p *Policy) Route(req models.RoutingRequest, budget BudgetView) (models.RoutingDecision, error) {
	if req.ForcedModelID != "" {
		desc, err := p.cat.Get(req.ForcedModelID)
		if err != nil {
			return models.RoutingDecision{}, err
		}
		return models.RoutingDecision{Candidates: []models.ModelDescriptor{desc}, Reason: ReasonForcedModel}, nil
	}

	tier, reason := p.chooseTier(req, budget)

	chain := []models.Tier{tier}
	if tier == models.TierHostedPremium && req.Connectivity[models.TierHostedStandard] {
		chain = append(chain, models.TierHostedStandard)
	}
	if tier != models.TierLocal {
		chain = append(chain, models.TierLocal)
	}

	var candidates []models.ModelDescriptor
	for _, t := range chain {
		candidates = append(candidates, p.tierCandidates(req, t)...)
	}
	if len(candidates) == 0 {
		// The local tier is supposed to make this unreachable.
		return models.RoutingDecision{}, fmt.Errorf("no candidates for tier chain %v", chain)
	}
	return models.RoutingDecision{Candidates: candidates, Reason: reason}, nil
}

// chooseTier applies the decision rules in priority order and names the
// rule that matched.
func (p *Policy) chooseTier(req models.RoutingRequest, budget BudgetView) (models.Tier, string) {
	hostedReachable := req.Connectivity[models.TierHostedStandard] || req.Connectivity[models.TierHostedPremium]
	if !hostedReachable {
		return models.TierLocal, ReasonNoConnectivity
	}

	if !budget.IsUserWithinDailyCap(req.UserID, req.Role) {
		return models.TierLocal, ReasonDailyCap
	}

	if req.RequiresMultimodal {
		if req.Connectivity[models.TierHostedPremium] && budget.RemainingMonthlyBudget() > p.limits.PremiumFloor {
			return models.TierHostedPremium, ReasonMultimodal
		}
		return models.TierHostedStandard, ReasonMultimodalDemo
	}

	if isHighStakes(req.TaskType) && isPayingRole(req.Role) {
		return models.TierHostedStandard, ReasonHighStakesTask
	}

	if req.TaskType == models.TaskTutoring && req.Role == models.RoleStudent && req.Complexity == models.ComplexityBasic {
		return models.TierLocal, ReasonStudentTutoring
	}

	return models.TierHostedStandard, ReasonDefault
}

func isHighStakes(task models.TaskType) bool {
	switch task {
	case models.TaskLessonPlanning, models.TaskGrading, models.TaskRubricGeneration:
		return true
	}
	return false
}

func isPayingRole(role models.Role) bool {
	switch role {
	case models.RoleTeacher, models.RoleAdmin:
		return true
	}
	return false
}

// tierCandidates orders a tier's models: comfortable window fits first,
// then by quality rank; multimodal models lead when the request needs
// them. Models that do not fit stay in the list since the fitter can
// still truncate into them.
func (p *Policy) tierCandidates(req models.RoutingRequest, tier models.Tier) []models.ModelDescriptor {
	descs := p.cat.ByTier(tier)
	needed := p.estimatePrompt(req) + req.MaxOutputTokens

	sort.SliceStable(descs, func(i, j int) bool {
		if req.RequiresMultimodal && descs[i].Multimodal != descs[j].Multimodal {
			return descs[i].Multimodal
		}
		fi := float64(descs[i].ContextWindowTokens) >= float64(needed)*comfortFactor
		fj := float64(descs[j].ContextWindowTokens) >= float64(needed)*comfortFactor
		if fi != fj {
			return fi
		}
		return descs[i].QualityRank > descs[j].QualityRank
	})
	return descs
}

// estimatePrompt sizes the request text with the default family divisor.
// Per-family precision does not matter here; the fitter redoes the math
// against the model that actually runs.
func (p *Policy) estimatePrompt(req models.RoutingRequest) int {
	return p.est.Count("", req.SystemPrompt) +
		p.est.Count("", req.ContextText) +
		p.est.Count("", req.Prompt)
}
