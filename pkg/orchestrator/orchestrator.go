// Package orchestrator drives one logical generation request end to end:
// route, fit context, call the provider, fall back on failure, recover
// structured output, and record usage. It is the single place that
// decides retry-versus-fail.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scholaris-edu/scholaris/pkg/audit"
	cachesqlite "github.com/scholaris-edu/scholaris/pkg/cache/sqlite"
	"github.com/scholaris-edu/scholaris/pkg/catalog"
	"github.com/scholaris-edu/scholaris/pkg/extract"
	"github.com/scholaris-edu/scholaris/pkg/fitter"
	"github.com/scholaris-edu/scholaris/pkg/ledger"
	"github.com/scholaris-edu/scholaris/pkg/models"
	"github.com/scholaris-edu/scholaris/pkg/provider"
	"github.com/scholaris-edu/scholaris/pkg/routing"
	"github.com/scholaris-edu/scholaris/pkg/tokens"
)

// defaultMaxOutput caps the response reservation when the request does
// not specify one.
const defaultMaxOutput = 1024

// defaultCallTimeout bounds a single provider call.
const defaultCallTimeout = 60 * time.Second

// AttemptFailure pairs a candidate model with the error that failed it.
type AttemptFailure struct {
	ModelID string
	Err     error
}

// ExhaustedError means every candidate in the routing decision failed.
// Callers see the full chain, not just the last error.
type ExhaustedError struct {
	Failures []AttemptFailure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.ModelID, f.Err)
	}
	return fmt.Sprintf("all providers exhausted after %d attempts: %s",
		len(e.Failures), strings.Join(parts, "; "))
}

// Params wires an Engine. Catalog, Estimator, Fitter, Policy, Ledger, and
// Clients are required; Probe, Cache, and Audit are optional.
type Params struct {
	Catalog     *catalog.Catalog
	Estimator   *tokens.Estimator
	Fitter      *fitter.Fitter
	Policy      *routing.Policy
	Ledger      *ledger.Ledger
	Clients     *provider.Registry
	Probe       provider.ConnectivityProbe
	Cache       *cachesqlite.Cache
	Audit       *audit.Logger
	CallTimeout time.Duration
}

// Engine is the explicit context object holding every collaborator a
// generation needs. Built once at process start, passed by reference.
type Engine struct {
	cat         *catalog.Catalog
	est         *tokens.Estimator
	fit         *fitter.Fitter
	policy      *routing.Policy
	ledger      *ledger.Ledger
	clients     *provider.Registry
	probe       provider.ConnectivityProbe
	cache       *cachesqlite.Cache
	auditor     *audit.Logger
	callTimeout time.Duration
}

// New creates an Engine.
func New(p Params) (*Engine, error) {
	if p.Catalog == nil || p.Estimator == nil || p.Fitter == nil ||
		p.Policy == nil || p.Ledger == nil || p.Clients == nil {
		return nil, fmt.Errorf("orchestrator: missing required collaborator")
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = defaultCallTimeout
	}
	return &Engine{
		cat:         p.Catalog,
		est:         p.Estimator,
		fit:         p.Fitter,
		policy:      p.Policy,
		ledger:      p.Ledger,
		clients:     p.Clients,
		probe:       p.Probe,
		cache:       p.Cache,
		auditor:     p.Audit,
		callTimeout: p.CallTimeout,
	}, nil
}

// Ledger exposes the engine's ledger for reporting surfaces.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Catalog exposes the engine's model registry.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// Policy exposes the routing policy for dry-run decisions.
func (e *Engine) Policy() *routing.Policy { return e.policy }

// Generate runs one request through route, fit, call, and recover,
// falling back across candidates in order. Exactly one usage event is
// recorded per attempted candidate, failures included.
func (e *Engine) Generate(ctx context.Context, req models.RoutingRequest) (models.GenerationResult, error) {
	if req.MaxOutputTokens <= 0 {
		req.MaxOutputTokens = defaultMaxOutput
	}
	if req.Connectivity == nil && e.probe != nil {
		req.Connectivity = e.probe.Check(ctx)
	}

	requestID := uuid.NewString()

	cacheKey := ""
	if e.cache != nil && req.ForcedModelID == "" {
		cacheKey = cachesqlite.HashRequest(req.TaskType, req.SystemPrompt, req.Prompt)
		if result, ok := e.cache.Get(cacheKey); ok {
			log.Printf("[orchestrator] %s cache hit (model %s)", requestID, result.ModelID)
			return result, nil
		}
	}

	decision, err := e.policy.Route(req, e.ledger)
	if err != nil {
		return models.GenerationResult{}, err
	}
	log.Printf("[orchestrator] %s routed %s/%s via %s: %d candidates",
		requestID, req.Role, req.TaskType, decision.Reason, len(decision.Candidates))

	tried := make(map[string]bool, len(decision.Candidates))
	var failures []AttemptFailure

	for _, desc := range decision.Candidates {
		if tried[desc.ID] {
			continue
		}
		tried[desc.ID] = true
		attempt := len(failures) + 1

		result, err := e.tryCandidate(ctx, req, desc, requestID, attempt)
		if err != nil {
			failures = append(failures, AttemptFailure{ModelID: desc.ID, Err: err})
			continue
		}

		if cacheKey != "" {
			if err := e.cache.Put(cacheKey, result); err != nil {
				log.Printf("[orchestrator] %s cache put: %v", requestID, err)
			}
		}
		return result, nil
	}

	log.Printf("[orchestrator] %s exhausted %d candidates", requestID, len(failures))
	return models.GenerationResult{}, &ExhaustedError{Failures: failures}
}

// tryCandidate runs a single candidate and records its usage event,
// success or failure.
func (e *Engine) tryCandidate(ctx context.Context, req models.RoutingRequest, desc models.ModelDescriptor, requestID string, attempt int) (models.GenerationResult, error) {
	client, err := e.clients.ClientFor(desc)
	if err != nil {
		e.recordAttempt(ctx, req, desc, requestID, attempt, 0, 0, 0, "provider_error", err)
		return models.GenerationResult{}, err
	}

	prompt, err := e.fit.FitRequest(req, desc.ID)
	if err != nil {
		e.recordAttempt(ctx, req, desc, requestID, attempt, 0, 0, 0, "provider_error", err)
		return models.GenerationResult{}, err
	}
	inputTokens := e.est.Count(desc.Family, req.SystemPrompt) + e.est.Count(desc.Family, prompt)

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	start := time.Now()
	raw, err := client.Generate(callCtx, provider.GenerateParams{
		Model:        desc,
		Prompt:       prompt,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxOutputTokens,
	})
	latency := time.Since(start).Milliseconds()

	if err != nil {
		e.recordAttempt(ctx, req, desc, requestID, attempt, inputTokens, 0, latency, "provider_error", err)
		return models.GenerationResult{}, err
	}

	var object map[string]any
	if req.RequiresStructuredOutput {
		object, err = extract.JSON(raw, req.WrapKey)
		if err != nil {
			// Broken JSON is operationally a failed generation: fall back.
			e.recordAttempt(ctx, req, desc, requestID, attempt, inputTokens, 0, latency, "bad_output", err)
			return models.GenerationResult{}, err
		}
	}

	outputTokens := e.est.Count(desc.Family, raw)
	cost, err := e.cat.EstimateCost(inputTokens, outputTokens, desc.ID)
	if err != nil {
		return models.GenerationResult{}, err
	}

	e.recordAttempt(ctx, req, desc, requestID, attempt, inputTokens, outputTokens, latency, "success", nil)

	return models.GenerationResult{
		Content:      raw,
		Object:       object,
		ModelID:      desc.ID,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         cost,
		LatencyMS:    latency,
	}, nil
}

// recordAttempt writes the usage event and audit entry for one attempt.
// Ledger failures are logged, not propagated: losing one billing row must
// not fail a generation that already happened.
func (e *Engine) recordAttempt(ctx context.Context, req models.RoutingRequest, desc models.ModelDescriptor, requestID string, attempt, inputTokens, outputTokens int, latency int64, outcome string, attemptErr error) {
	var cost float64
	errStr := ""
	if attemptErr != nil {
		errStr = attemptErr.Error()
	} else {
		cost, _ = e.cat.EstimateCost(inputTokens, outputTokens, desc.ID)
	}

	event := models.UsageEvent{
		UserID:       req.UserID,
		Role:         req.Role,
		ModelID:      desc.ID,
		TaskType:     req.TaskType,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         cost,
		LatencyMS:    latency,
		Success:      attemptErr == nil,
		Error:        errStr,
	}
	if err := e.ledger.Record(ctx, event); err != nil {
		log.Printf("[orchestrator] %s record usage: %v", requestID, err)
	}

	if err := e.auditor.Log(ctx, models.AuditEntry{
		RequestID: requestID,
		UserID:    req.UserID,
		Role:      req.Role,
		TaskType:  req.TaskType,
		ModelID:   desc.ID,
		Attempt:   attempt,
		Outcome:   outcome,
		Error:     errStr,
		LatencyMS: latency,
	}); err != nil {
		log.Printf("[orchestrator] %s audit log: %v", requestID, err)
	}
}
