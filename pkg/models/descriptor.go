package models

// ModelDescriptor describes a single model in the static registry.
// Descriptors are immutable; the catalog hands out copies.
type ModelDescriptor struct {
	ID                  string  `json:"id" yaml:"id"`
	Tier                Tier    `json:"tier" yaml:"tier"`
	Family              string  `json:"family" yaml:"family"`
	ContextWindowTokens int     `json:"context_window_tokens" yaml:"context_window_tokens"`
	CostPer1KInput      float64 `json:"cost_per_1k_input" yaml:"cost_per_1k_input"`
	CostPer1KOutput     float64 `json:"cost_per_1k_output" yaml:"cost_per_1k_output"`
	QualityRank         int     `json:"quality_rank" yaml:"quality_rank"`
	Multimodal          bool    `json:"multimodal" yaml:"multimodal"`
}
