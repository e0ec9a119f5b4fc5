package orchestrator

import (
	"github.com/agentflow/orchestrator/agent"
	"github.com/agentflow/orchestrator/registry"
)

// AgentResolver satisfies resilience.Resolver by pairing the registry's
// descriptors with a statically-built name->Adapter map (in-process
// functions and remote-tool clients alike).
type AgentResolver struct {
	registry *registry.Registry
	adapters map[string]agent.Adapter
}

// NewAgentResolver wires a registry to its adapters. adapters must contain
// an entry for every descriptor name the registry will ever hold;
// unresolvable names surface as agent.FailurePermanent at call time.
func NewAgentResolver(reg *registry.Registry, adapters map[string]agent.Adapter) *AgentResolver {
	return &AgentResolver{registry: reg, adapters: adapters}
}

// Resolve implements resilience.Resolver.
func (r *AgentResolver) Resolve(name string) (agent.Adapter, registry.Descriptor, bool) {
	desc, ok := r.registry.Get(name)
	if !ok || !desc.Enabled {
		return nil, registry.Descriptor{}, false
	}
	a, ok := r.adapters[name]
	if !ok {
		return nil, registry.Descriptor{}, false
	}
	return a, desc, true
}
