package action

import (
	"errors"
	"fmt"
	"sync"
)

// ErrFrozen is returned when modifying a registry after setup is over.
var ErrFrozen = errors.New("action registry is frozen")

// Registry assigns sequential ids to actions and looks them up by label.
// Actions may only be added during setup: once frozen, the registry is
// read-only and can be shared between streams.
type Registry struct {
	mu      sync.RWMutex
	actions []Action
	labels  map[string]ActionId
	frozen  bool
}

func NewRegistry() *Registry {
	return &Registry{labels: map[string]ActionId{}}
}

// NextId returns the id the next inserted action must have.
func (r *Registry) NextId() ActionId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ActionId(len(r.actions))
}

// Insert registers an action created with NextId.
func (r *Registry) Insert(a Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.frozen:
		return fmt.Errorf("cannot insert action '%s': %w", a.Label(), ErrFrozen)
	case a.Label() == "":
		return fmt.Errorf("action %d has an empty label", a.ActionId())
	case a.ActionId() != ActionId(len(r.actions)):
		return fmt.Errorf(
			"action '%s' has id %d, but the next id is %d",
			a.Label(), a.ActionId(), len(r.actions),
		)
	}
	if _, ok := r.labels[a.Label()]; ok {
		return fmt.Errorf("duplicate action label '%s'", a.Label())
	}

	r.labels[a.Label()] = a.ActionId()
	r.actions = append(r.actions, a)
	return nil
}

// Find returns the id of the action with the given label.
func (r *Registry) Find(label string) (ActionId, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.labels[label]
	if !ok { return NoAction, false }
	return id, true
}

// Action returns the action with the given id.
func (r *Registry) Action(id ActionId) Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actions[id]
}

// Label returns the label of the action with the given id.
func (r *Registry) Label(id ActionId) string {
	return r.Action(id).Label()
}

// Size returns the number of registered actions.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

// Freeze prevents further insertions.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen returns true if the registry no longer accepts actions.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Actions returns every registered action in id order.
func (r *Registry) Actions() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Action(nil), r.actions...)
}
