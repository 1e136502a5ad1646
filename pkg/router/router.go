// Package router resolves a query's task classification to an ordered chain
// of provider targets. The first target is the preferred provider; later
// targets are fallbacks tried when the first one's retries are exhausted.
package router

import (
	"fmt"

	"github.com/fanout-ai/fanout/pkg/config"
	"github.com/fanout-ai/fanout/pkg/models"
	"github.com/fanout-ai/fanout/pkg/provider"
)

// Target is one resolved provider and model to try.
type Target struct {
	Caller   provider.Caller
	Provider string
	Model    string
}

// Router maps task types to provider chains.
type Router struct {
	routes   map[models.TaskType][]Target
	fallback []Target
}

// New builds a Router from configuration, constructing one Caller per
// configured provider. Route targets naming unknown providers are skipped.
func New(cfg *config.Config) (*Router, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	callers := make(map[string]provider.Caller, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		c, err := provider.New(pc)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", pc.Name, err)
		}
		callers[pc.Name] = c
	}

	routes := make(map[models.TaskType][]Target, len(cfg.Routes))
	for _, rc := range cfg.Routes {
		var targets []Target
		for _, t := range rc.Targets {
			c, ok := callers[t.Provider]
			if !ok {
				continue
			}
			targets = append(targets, Target{Caller: c, Provider: t.Provider, Model: t.Model})
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("route %q: all providers unknown", rc.Task)
		}
		routes[rc.Task] = targets
	}

	first := cfg.Providers[0]
	fallback := []Target{{
		Caller:   callers[first.Name],
		Provider: first.Name,
		Model:    first.DefaultModel,
	}}

	return &Router{routes: routes, fallback: fallback}, nil
}

// NewStatic builds a Router from pre-constructed targets. Used by callers
// that assemble their own providers, and by tests.
func NewStatic(routes map[models.TaskType][]Target, fallback []Target) *Router {
	if routes == nil {
		routes = map[models.TaskType][]Target{}
	}
	return &Router{routes: routes, fallback: fallback}
}

// Resolve returns the ordered targets for a task type. Task types without a
// configured route fall back to the first provider and its default model.
func (r *Router) Resolve(task models.TaskType) ([]Target, error) {
	if targets, ok := r.routes[task]; ok {
		return targets, nil
	}
	if len(r.fallback) == 0 {
		return nil, fmt.Errorf("no route for task %q and no default provider", task)
	}
	return r.fallback, nil
}
