package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/scholaris-edu/scholaris/pkg/models"
)

// ConnectivityProbe reports per-tier reachability, sampled once per
// request to populate the routing snapshot.
type ConnectivityProbe interface {
	Check(ctx context.Context) map[models.Tier]bool
}

// HTTPProbe checks tier endpoints with cheap GET requests. Any HTTP
// response counts as reachable; only transport failures mark a tier down.
type HTTPProbe struct {
	endpoints map[models.Tier]string
	client    *http.Client
}

// NewHTTPProbe creates a probe over per-tier base URLs. Tiers without an
// endpoint always report unreachable.
func NewHTTPProbe(endpoints map[models.Tier]string, timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPProbe{
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout},
	}
}

// Check probes every configured tier.
func (p *HTTPProbe) Check(ctx context.Context) map[models.Tier]bool {
	out := make(map[models.Tier]bool, len(p.endpoints))
	for tier, endpoint := range p.endpoints {
		out[tier] = p.reachable(ctx, endpoint)
	}
	return out
}

func (p *HTTPProbe) reachable(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Assume wraps a probe so the given tiers always report reachable. The
// local tier goes here: there is nothing to probe for an in-process model.
func Assume(next ConnectivityProbe, tiers ...models.Tier) ConnectivityProbe {
	return &assumeProbe{next: next, tiers: tiers}
}

type assumeProbe struct {
	next  ConnectivityProbe
	tiers []models.Tier
}

func (p *assumeProbe) Check(ctx context.Context) map[models.Tier]bool {
	var out map[models.Tier]bool
	if p.next != nil {
		out = p.next.Check(ctx)
	}
	if out == nil {
		out = make(map[models.Tier]bool, len(p.tiers))
	}
	for _, t := range p.tiers {
		out[t] = true
	}
	return out
}

// StaticProbe returns a fixed connectivity map. Used when probing is
// disabled and in tests.
type StaticProbe map[models.Tier]bool

// Check returns a copy of the fixed map.
func (s StaticProbe) Check(ctx context.Context) map[models.Tier]bool {
	out := make(map[models.Tier]bool, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
