// Package provider defines the client contract for model backends and the
// error taxonomy the orchestrator's fallback loop keys on. One client per
// backend family; all interchangeable behind the Client interface.
package provider

import (
	"context"
	"fmt"

	"github.com/scholaris-edu/scholaris/pkg/models"
)

// GenerateParams is a single generation call against one model.
type GenerateParams struct {
	Model        models.ModelDescriptor
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Client is a model backend. Generate blocks for the duration of the
// upstream call; cancellation and timeouts come through ctx.
type Client interface {
	Generate(ctx context.Context, params GenerateParams) (string, error)
	Name() string
}

// ErrorKind classifies provider failures. All kinds are recoverable by
// falling back to the next candidate.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindRateLimit ErrorKind = "rate_limit"
	KindSafety    ErrorKind = "safety_block"
	KindNetwork   ErrorKind = "network"
	KindMalformed ErrorKind = "malformed_response"
)

// Error wraps an upstream failure with its classification and the model
// that was being called.
type Error struct {
	Kind    ErrorKind
	ModelID string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error (%s) for model %s: %v", e.Kind, e.ModelID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Registry maps tiers to the client serving them.
type Registry struct {
	clients map[models.Tier]Client
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[models.Tier]Client)}
}

// Register installs the client for a tier, replacing any previous one.
func (r *Registry) Register(tier models.Tier, c Client) {
	r.clients[tier] = c
}

// ClientFor returns the client serving a model's tier.
func (r *Registry) ClientFor(desc models.ModelDescriptor) (Client, error) {
	c, ok := r.clients[desc.Tier]
	if !ok {
		return nil, fmt.Errorf("no client registered for tier %s", desc.Tier)
	}
	return c, nil
}
