package models

// RoutingRequest carries everything the routing policy needs to pick a
// model. Constructed per call; immutable value object; not persisted.
type RoutingRequest struct {
	Prompt       string
	SystemPrompt string
	// ContextText is retrieval output prepended to the prompt. It is the
	// part the context fitter shrinks first.
	ContextText string

	UserID     string
	Role       Role
	TaskType   TaskType
	Complexity Complexity

	RequiresStructuredOutput bool
	RequiresMultimodal       bool
	MaxOutputTokens          int

	// Connectivity is a per-tier reachability snapshot taken once per
	// request. A missing tier counts as unreachable.
	Connectivity map[Tier]bool

	// ForcedModelID short-circuits routing when set.
	ForcedModelID string

	// WrapKey names the object key under which a bare top-level JSON array
	// is wrapped during structured-output recovery. Empty means "items".
	WrapKey string
}

// RoutingDecision is the ordered candidate list for one request: primary
// first, fallbacks after. Recomputed per request, never persisted.
type RoutingDecision struct {
	Candidates []ModelDescriptor
	// Reason names the rule that picked the primary candidate.
	Reason string
}

// Primary returns the first candidate.
func (d RoutingDecision) Primary() ModelDescriptor {
	if len(d.Candidates) == 0 {
		return ModelDescriptor{}
	}
	return d.Candidates[0]
}

// GenerationResult is the single result shape for every completed
// generation, fresh or cached.
type GenerationResult struct {
	Content string `json:"content"`
	// Object is the recovered JSON object when structured output was
	// requested, nil otherwise.
	Object map[string]any `json:"object,omitempty"`

	ModelID      string  `json:"model_id"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
	LatencyMS    int64   `json:"latency_ms"`
	Cached       bool    `json:"cached"`
}
