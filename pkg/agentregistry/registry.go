package agentregistry

import (
	"sync"
	"time"

	"github.com/orchestr8/engine/internal/orcherr"
	"github.com/orchestr8/engine/pkg/schema"
)

// Factory lazily constructs the concrete Agent for an id, called once
// on first GetAgent.
type Factory func() (Agent, error)

// Status is the runtime status of one registered agent.
type Status struct {
	State              string
	LastExecution      time.Time
	ConsecutiveFailures int
}

// Registry is a process-wide agent registry with a constructible ->
// sealed lifecycle: registrations are rejected after Seal.
type Registry struct {
	mu       sync.RWMutex
	sealed   bool
	factories map[schema.AgentID]Factory
	metadata  map[schema.AgentID]Metadata
	instances map[schema.AgentID]Agent
	status    map[schema.AgentID]*Status
}

// New creates an empty, unsealed registry.
func New() *Registry {
	return &Registry{
		factories: make(map[schema.AgentID]Factory),
		metadata:  make(map[schema.AgentID]Metadata),
		instances: make(map[schema.AgentID]Agent),
		status:    make(map[schema.AgentID]*Status),
	}
}

// Register adds a lazily-constructed agent under id. Fails once the
// registry is sealed.
func (r *Registry) Register(id schema.AgentID, meta Metadata, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return orcherr.InvariantViolation("agentregistry", "Register", "registry is sealed", nil)
	}
	if _, exists := r.factories[id]; exists {
		return orcherr.Conflict("agentregistry", "Register", "agent already registered: "+string(id), nil)
	}

	r.factories[id] = factory
	r.metadata[id] = meta
	r.status[id] = &Status{State: "registered"}
	return nil
}

// Seal prevents further registrations. Safe to call multiple times.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether the registry has been sealed.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// GetAgent returns the agent for id, instantiating it on first access.
func (r *Registry) GetAgent(id schema.AgentID) (Agent, error) {
	r.mu.RLock()
	if inst, ok := r.instances[id]; ok {
		r.mu.RUnlock()
		return inst, nil
	}
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, orcherr.NotFound("agentregistry", "GetAgent", "agent not found: "+string(id), nil)
	}

	inst, err := factory()
	if err != nil {
		return nil, orcherr.UpstreamError("agentregistry", "GetAgent", "factory failed for "+string(id), err)
	}

	r.mu.Lock()
	r.instances[id] = inst
	r.mu.Unlock()
	return inst, nil
}

// Metadata returns the declared metadata for id without instantiating
// the agent.
func (r *Registry) Metadata(id schema.AgentID) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metadata[id]
	return m, ok
}

// FindByCapability returns every registered agent id that declares a
// capability with the given name.
func (r *Registry) FindByCapability(name string) []schema.AgentID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []schema.AgentID
	for id, meta := range r.metadata {
		for _, cap := range meta.Capabilities {
			if cap.Name == name {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// FindByInputType returns every registered agent id that declares a
// capability accepting the given input type.
func (r *Registry) FindByInputType(inputType string) []schema.AgentID {
	return r.findByTypeList(inputType, func(c Capability) []string { return c.InputTypes })
}

// FindByOutputType returns every registered agent id that declares a
// capability producing the given output type.
func (r *Registry) FindByOutputType(outputType string) []schema.AgentID {
	return r.findByTypeList(outputType, func(c Capability) []string { return c.OutputTypes })
}

func (r *Registry) findByTypeList(want string, list func(Capability) []string) []schema.AgentID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []schema.AgentID
	for id, meta := range r.metadata {
		for _, c := range meta.Capabilities {
			for _, t := range list(c) {
				if t == want {
					out = append(out, id)
				}
			}
		}
	}
	return out
}

// StatusOf returns the status snapshot for id.
func (r *Registry) StatusOf(id schema.AgentID) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.status[id]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

// RecordExecution updates the status after a run completes.
func (r *Registry) RecordExecution(id schema.AgentID, success bool, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.status[id]
	if !ok {
		s = &Status{}
		r.status[id] = s
	}
	s.LastExecution = at
	if success {
		s.State = "idle"
		s.ConsecutiveFailures = 0
	} else {
		s.State = "failing"
		s.ConsecutiveFailures++
	}
}
