package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	cachesqlite "github.com/scholaris-edu/scholaris/pkg/cache/sqlite"
	"github.com/scholaris-edu/scholaris/pkg/catalog"
	"github.com/scholaris-edu/scholaris/pkg/fitter"
	"github.com/scholaris-edu/scholaris/pkg/ledger"
	"github.com/scholaris-edu/scholaris/pkg/models"
	"github.com/scholaris-edu/scholaris/pkg/provider"
	"github.com/scholaris-edu/scholaris/pkg/routing"
	"github.com/scholaris-edu/scholaris/pkg/tokens"
)

// memSink records appended events in memory.
type memSink struct {
	mu     sync.Mutex
	events []models.UsageEvent
}

func (s *memSink) Append(_ context.Context, event models.UsageEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return int64(len(s.events)), nil
}

func (s *memSink) LoadCurrentMonth(context.Context, time.Time) ([]models.UsageEvent, error) {
	return nil, nil
}

func (s *memSink) all() []models.UsageEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UsageEvent, len(s.events))
	copy(out, s.events)
	return out
}

// scriptClient answers per model id: an entry in errs fails the call, an
// entry in responses answers it, anything else gets the fallback text.
type scriptClient struct {
	responses map[string]string
	errs      map[string]error
	fallback  string

	mu    sync.Mutex
	calls []string
}

func (c *scriptClient) Generate(_ context.Context, params provider.GenerateParams) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, params.Model.ID)
	c.mu.Unlock()

	if err, ok := c.errs[params.Model.ID]; ok {
		return "", err
	}
	if resp, ok := c.responses[params.Model.ID]; ok {
		return resp, nil
	}
	return c.fallback, nil
}

func (c *scriptClient) Name() string { return "script" }

func testLimits() models.BudgetLimits {
	return models.BudgetLimits{
		PerRoleDailyCap: map[models.Role]float64{
			models.RoleStudent: 0.50,
			models.RoleTeacher: 2.00,
		},
		MonthlyOrgCap:          100,
		AlertThresholdFraction: 0.8,
		PremiumFloor:           20,
	}
}

func newTestEngine(t *testing.T, client provider.Client, cache *cachesqlite.Cache) (*Engine, *memSink) {
	t.Helper()
	cat := catalog.Default()
	est := tokens.NewEstimator()
	sink := &memSink{}
	led := ledger.New(testLimits(), sink)

	clients := provider.NewRegistry()
	clients.Register(models.TierLocal, client)
	clients.Register(models.TierHostedStandard, client)
	clients.Register(models.TierHostedPremium, client)

	eng, err := New(Params{
		Catalog:     cat,
		Estimator:   est,
		Fitter:      fitter.New(cat, est),
		Policy:      routing.New(cat, est, testLimits()),
		Ledger:      led,
		Clients:     clients,
		Cache:       cache,
		CallTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng, sink
}

func allConnected() map[models.Tier]bool {
	return map[models.Tier]bool{
		models.TierLocal:          true,
		models.TierHostedStandard: true,
		models.TierHostedPremium:  true,
	}
}

func summaryRequest() models.RoutingRequest {
	return models.RoutingRequest{
		Prompt:       "Summarize the attendance report for week 12.",
		SystemPrompt: "You are a school assistant.",
		UserID:       "parent-9",
		Role:         models.RoleParent,
		TaskType:     models.TaskSummarization,
		Complexity:   models.ComplexityMedium,
		Connectivity: allConnected(),
	}
}

func TestGenerateSuccess(t *testing.T) {
	client := &scriptClient{fallback: "Week 12 attendance was 94%."}
	eng, sink := newTestEngine(t, client, nil)

	result, err := eng.Generate(context.Background(), summaryRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.ModelID != "claude-3-5-haiku" {
		t.Errorf("ModelID = %s, want the top standard model", result.ModelID)
	}
	if result.Content != "Week 12 attendance was 94%." {
		t.Errorf("Content = %q", result.Content)
	}
	if result.Cost <= 0 {
		t.Errorf("hosted generation should have positive cost, got %v", result.Cost)
	}
	if result.Cached {
		t.Error("fresh generation must not be marked cached")
	}

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(events))
	}
	if !events[0].Success || events[0].Cost != result.Cost {
		t.Errorf("event = %+v, want success matching result cost", events[0])
	}
}

func TestFallbackOnProviderError(t *testing.T) {
	client := &scriptClient{
		errs: map[string]error{
			"claude-3-5-haiku": &provider.Error{Kind: provider.KindRateLimit, ModelID: "claude-3-5-haiku", Err: errors.New("429")},
		},
		fallback: "done",
	}
	eng, sink := newTestEngine(t, client, nil)

	result, err := eng.Generate(context.Background(), summaryRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.ModelID != "gpt-4o-mini" {
		t.Errorf("ModelID = %s, want the second standard candidate", result.ModelID)
	}

	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("recorded %d events, want one per attempt", len(events))
	}
	if events[0].Success || events[0].Cost != 0 {
		t.Errorf("failed attempt event = %+v, want failure at zero cost", events[0])
	}
	if events[0].Error == "" {
		t.Error("failed attempt should record the error string")
	}
	if !events[1].Success {
		t.Errorf("second attempt event = %+v, want success", events[1])
	}
}

func TestAllCandidatesExhausted(t *testing.T) {
	boom := &provider.Error{Kind: provider.KindNetwork, ModelID: "any", Err: errors.New("connection refused")}
	client := &scriptClient{errs: map[string]error{}}
	for _, d := range catalog.Default().List() {
		client.errs[d.ID] = boom
	}
	eng, sink := newTestEngine(t, client, nil)

	_, err := eng.Generate(context.Background(), summaryRequest())
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want ExhaustedError", err)
	}

	// Default routing for this request: standard chain then local.
	wantAttempts := len(catalog.Default().ByTier(models.TierHostedStandard)) +
		len(catalog.Default().ByTier(models.TierLocal))
	if len(exhausted.Failures) != wantAttempts {
		t.Errorf("failure chain has %d entries, want %d", len(exhausted.Failures), wantAttempts)
	}
	events := sink.all()
	if len(events) != wantAttempts {
		t.Errorf("recorded %d events, want one per attempted candidate", len(events))
	}
	for _, ev := range events {
		if ev.Success || ev.Cost != 0 {
			t.Errorf("exhausted run recorded event %+v, want failure at zero cost", ev)
		}
	}
}

func TestStructuredOutputFallback(t *testing.T) {
	client := &scriptClient{
		responses: map[string]string{
			"claude-3-5-haiku": "Sure, happy to help with that quiz.",
			"gpt-4o-mini":      "```json\n{\"score\": 5}\n```",
		},
	}
	eng, sink := newTestEngine(t, client, nil)

	req := summaryRequest()
	req.RequiresStructuredOutput = true

	result, err := eng.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.ModelID != "gpt-4o-mini" {
		t.Errorf("ModelID = %s, want fallback after unparseable output", result.ModelID)
	}
	if got := result.Object["score"]; got != float64(5) {
		t.Errorf("Object[score] = %v, want 5", got)
	}

	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("recorded %d events, want 2", len(events))
	}
	if events[0].Error == "" {
		t.Error("first event should carry the extraction error string")
	}
	if events[0].Success {
		t.Error("unparseable structured output must be recorded as a failed attempt")
	}
}

func TestStructuredArrayWrap(t *testing.T) {
	client := &scriptClient{fallback: `[{"q": "What is 2+2?"}, {"q": "What is 3+3?"}]`}
	eng, _ := newTestEngine(t, client, nil)

	req := summaryRequest()
	req.RequiresStructuredOutput = true
	req.WrapKey = "questions"

	result, err := eng.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	items, ok := result.Object["questions"].([]any)
	if !ok || len(items) != 2 {
		t.Errorf("Object[questions] = %v, want the two-element array", result.Object["questions"])
	}
}

func TestLocalRouteCostsNothing(t *testing.T) {
	client := &scriptClient{fallback: "4"}
	eng, sink := newTestEngine(t, client, nil)

	req := summaryRequest()
	req.Connectivity = map[models.Tier]bool{models.TierLocal: true}

	result, err := eng.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Cost != 0 {
		t.Errorf("local generation cost = %v, want 0", result.Cost)
	}
	desc, err := catalog.Default().Get(result.ModelID)
	if err != nil || desc.Tier != models.TierLocal {
		t.Errorf("offline request routed to %s (tier %s), want local", result.ModelID, desc.Tier)
	}
	if events := sink.all(); len(events) != 1 || events[0].Cost != 0 {
		t.Errorf("events = %+v, want one zero-cost event", events)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache, err := cachesqlite.New(filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	client := &scriptClient{fallback: "cached answer"}
	eng, sink := newTestEngine(t, client, cache)

	first, err := eng.Generate(context.Background(), summaryRequest())
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if first.Cached {
		t.Error("first result must not be cached")
	}

	second, err := eng.Generate(context.Background(), summaryRequest())
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if !second.Cached {
		t.Error("identical request should hit the cache")
	}
	if second.Content != first.Content || second.ModelID != first.ModelID {
		t.Errorf("cached result %+v does not replay original %+v", second, first)
	}
	if events := sink.all(); len(events) != 1 {
		t.Errorf("cache hit recorded %d extra events, want none", len(events)-1)
	}
	if calls := len(client.calls); calls != 1 {
		t.Errorf("provider called %d times, want 1", calls)
	}
}

func TestForcedModelBypassesCache(t *testing.T) {
	cache, err := cachesqlite.New(filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	client := &scriptClient{fallback: "forced"}
	eng, _ := newTestEngine(t, client, cache)

	req := summaryRequest()
	req.ForcedModelID = "gemini-2.0-flash"

	for i := 0; i < 2; i++ {
		result, err := eng.Generate(context.Background(), req)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if result.ModelID != "gemini-2.0-flash" {
			t.Errorf("ModelID = %s, want the forced model", result.ModelID)
		}
		if result.Cached {
			t.Error("forced requests must not serve from cache")
		}
	}
	if calls := len(client.calls); calls != 2 {
		t.Errorf("provider called %d times, want 2", calls)
	}
}

func TestForcedModelUnknown(t *testing.T) {
	client := &scriptClient{fallback: "x"}
	eng, sink := newTestEngine(t, client, nil)

	req := summaryRequest()
	req.ForcedModelID = "gpt-99-turbo"

	_, err := eng.Generate(context.Background(), req)
	var unknown *catalog.UnknownModelError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownModelError", err)
	}
	if events := sink.all(); len(events) != 0 {
		t.Errorf("routing failure recorded %d events, want none", len(events))
	}
}

func TestDuplicateCandidatesTriedOnce(t *testing.T) {
	// Two models sharing an id cannot exist in the catalog, so exercise the
	// guard through a request whose primary tier is LOCAL: the chain is
	// local-only and every id appears exactly once in the call log.
	boom := fmt.Errorf("down")
	client := &scriptClient{errs: map[string]error{
		"qwen2.5-7b-local": boom, "llama-3.1-8b-local": boom, "phi-3-mini-local": boom,
	}}
	eng, _ := newTestEngine(t, client, nil)

	req := summaryRequest()
	req.Connectivity = map[models.Tier]bool{models.TierLocal: true}

	_, err := eng.Generate(context.Background(), req)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want ExhaustedError", err)
	}
	seen := map[string]int{}
	for _, id := range client.calls {
		seen[id]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("model %s attempted %d times, want 1", id, n)
		}
	}
}
