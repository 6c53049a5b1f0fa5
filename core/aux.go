package core

import (
	"fmt"
	"sync"

	"github.com/phil-mansfield/gotrack/action"
	"github.com/phil-mansfield/gotrack/track"
)

// AuxId is the registration index of auxiliary data.
type AuxId int32

// AuxParams is shared data registered alongside the core params which needs
// its own mutable state in every stream. The state is stored in the core
// State and is reachable through State.Aux, which makes it a side channel
// between the core step actions and other subsystems.
type AuxParams interface {
	Label() string
	CreateState(p *Params, stream track.StreamId, size int) (interface{}, error)
}

// Flusher is auxiliary data which buffers work that must be finished before
// transport of an event can end.
type Flusher interface {
	AuxParams
	// Pending returns the number of buffered items which haven't been
	// finished.
	Pending(s *State) int
	// Flush finishes all buffered work.
	Flush(s *State) error
	// Reset drops all buffered work and returns the number of items lost.
	Reset(s *State) int
	// TakeDropped returns the number of items dropped since the last call,
	// either because a buffer was full or because finishing the work took
	// too long, and clears it.
	TakeDropped(s *State) int
}

// AuxRegistry assigns ids to auxiliary data.
type AuxRegistry struct {
	mu     sync.RWMutex
	aux    []AuxParams
	frozen bool
}

func NewAuxRegistry() *AuxRegistry { return &AuxRegistry{} }

// Insert registers aux data and returns its id.
func (r *AuxRegistry) Insert(a AuxParams) (AuxId, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return -1, fmt.Errorf("cannot insert aux data '%s': %w",
			a.Label(), action.ErrFrozen)
	}
	for _, old := range r.aux {
		if old.Label() == a.Label() {
			return -1, fmt.Errorf("duplicate aux label '%s'", a.Label())
		}
	}
	r.aux = append(r.aux, a)
	return AuxId(len(r.aux) - 1), nil
}

// Get returns the aux data with the given id.
func (r *AuxRegistry) Get(id AuxId) AuxParams {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aux[id]
}

// Size returns the number of registered aux data.
func (r *AuxRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.aux)
}

// All returns every registered aux data in id order.
func (r *AuxRegistry) All() []AuxParams {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]AuxParams(nil), r.aux...)
}

func (r *AuxRegistry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}
