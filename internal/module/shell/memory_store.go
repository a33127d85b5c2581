package shell

import (
	"context"
	"sync"

	"github.com/vidgen/studio/internal/model"
	"github.com/vidgen/studio/internal/port/outbound"
)

type stateKey struct {
	session string
	mode    model.GenerationMode
}

// MemoryStateStore keeps lifecycle states in process memory.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[stateKey]model.LifecycleState
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[stateKey]model.LifecycleState)}
}

func (s *MemoryStateStore) Get(_ context.Context, session string, mode model.GenerationMode) (*model.LifecycleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[stateKey{session, mode}]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *MemoryStateStore) Set(_ context.Context, session string, state *model.LifecycleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey{session, state.Mode}] = *state
	return nil
}

func (s *MemoryStateStore) Delete(_ context.Context, session string, mode model.GenerationMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, stateKey{session, mode})
	return nil
}

var _ outbound.LifecycleStateStorePort = (*MemoryStateStore)(nil)
