package cart

import (
	"context"
	"errors"
	"sync"
)

// ErrRevisionConflict means the stored cart moved past the revision a write
// was based on.
var ErrRevisionConflict = errors.New("cart revision conflict")

// Persister stores and retrieves the serialized cart for an owner.
//
// Load returns (nil, nil) when nothing has been stored yet. A payload that
// cannot be decoded yields ErrCorruptState together with an empty state
// carrying the stored revision, so the next write can replace it.
//
// Save writes state only while the stored revision still equals expected
// (0 when nothing is stored) and returns ErrRevisionConflict otherwise.
type Persister interface {
	Load(ctx context.Context, owner string) (*State, error)
	Save(ctx context.Context, owner string, expected int64, state State) error
}

// MemoryPersister keeps cart states in process memory.
type MemoryPersister struct {
	mu     sync.Mutex
	states map[string]State
	// FailSaves makes every Save return the configured error.
	FailSaves error
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{states: map[string]State{}}
}

func (m *MemoryPersister) Load(_ context.Context, owner string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[StorageKey(owner)]
	if !ok {
		return nil, nil
	}
	cloned := state.clone()
	return &cloned, nil
}

func (m *MemoryPersister) Save(_ context.Context, owner string, expected int64, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves != nil {
		return m.FailSaves
	}
	key := StorageKey(owner)
	if m.states[key].Revision != expected {
		return ErrRevisionConflict
	}
	m.states[key] = state.clone()
	return nil
}
