// Package agent implements the agent store and the opaque
// runner/factory pattern that dispatches a session's processing task
// to a type-selected producer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/turnstream/turnstream/internal/emitter"
	"github.com/turnstream/turnstream/internal/ids"
	"github.com/turnstream/turnstream/internal/storage"
	"github.com/turnstream/turnstream/pkg/types"
)

// ErrUnknownAgentType is returned by Factory.CreateRunner for a type
// with no registered runner.
var ErrUnknownAgentType = errors.New("agent: unknown agent type")

// RunContext is the information a Runner needs to do its work; it
// deliberately says nothing about the runner's internal control flow.
type RunContext struct {
	SessionID types.SessionId
	AgentID   types.AgentId
}

// Runner is an opaque event producer invoked once per processing
// task. It reports whether it completed the turn (true) or was
// interrupted (false), or returns an error.
type Runner interface {
	Run(ctx context.Context, rc RunContext, em *emitter.Emitter) (bool, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, rc RunContext, em *emitter.Emitter) (bool, error)

func (f RunnerFunc) Run(ctx context.Context, rc RunContext, em *emitter.Emitter) (bool, error) {
	return f(ctx, rc, em)
}

// Factory maps an agent's type tag to the Runner that implements it.
type Factory struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{runners: make(map[string]Runner)}
}

// RegisterRunner binds agentType to runner, replacing any prior
// binding.
func (f *Factory) RegisterRunner(agentType string, runner Runner) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runners[agentType] = runner
}

// CreateRunner returns the runner registered for agentType.
func (f *Factory) CreateRunner(agentType string) (Runner, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	runner, ok := f.runners[agentType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgentType, agentType)
	}
	return runner, nil
}

// Store holds the created agents. Agents are immutable after
// creation, so it exposes no update operation.
type Store struct {
	docs *storage.Collection[types.Agent]
}

// NewStore returns an empty agent store.
func NewStore() *Store {
	return &Store{docs: storage.NewCollection[types.Agent]("agents")}
}

// Create persists a new agent. name defaults to "Unnamed Agent" when
// empty, matching how the HTTP layer treats an omitted name.
func (s *Store) Create(agentType, name string, description *string) types.Agent {
	if name == "" {
		name = "Unnamed Agent"
	}
	agent := types.Agent{
		ID:          types.AgentId(ids.New()),
		Type:        agentType,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
	}
	s.docs.InsertOne(agent)
	return agent
}

// Get returns the agent with id, or ok=false.
func (s *Store) Get(id types.AgentId) (types.Agent, bool) {
	return s.docs.FindOne(func(a types.Agent) bool { return a.ID == id })
}

// List returns every agent in creation order. The original
// implementation's agent listing has no pagination; this mirrors
// that.
func (s *Store) List() []types.Agent {
	return s.docs.Find(nil)
}
