// Package action defines the named stages which make up a step iteration
// and the machinery for running them in a fixed order.
package action

import (
	"fmt"
	"strings"
)

// ActionId is the registration index of an action.
type ActionId int32

// NoAction is the id of an unregistered action.
const NoAction ActionId = -1

func (id ActionId) Valid() bool { return id >= 0 }

// Order determines when a step action runs within an iteration. Actions with
// the same order run in registration order.
type Order int8

const (
	OrderStart Order = iota
	OrderUserStart
	OrderPre
	OrderAlong
	OrderPrePost
	OrderPost
	OrderPostPost
	OrderEnd
	EndOrder
)

var orderNames = []string{
	"start", "user_start", "pre", "along", "pre_post", "post", "post_post",
	"end",
}

func (o Order) String() string {
	if o < 0 || o >= EndOrder { return "unknown" }
	return orderNames[o]
}

// ParseOrder converts a name like "post_post" into an Order.
func ParseOrder(s string) (Order, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for o := OrderStart; o < EndOrder; o++ {
		if orderNames[o] == s { return o, nil }
	}
	return EndOrder, fmt.Errorf("'%s' is not an action order", s)
}

// Action is anything with a registered id and a unique label.
type Action interface {
	ActionId() ActionId
	Label() string
	Description() string
}

// StepAction is executed once per step iteration over every occupied slot
// of a state. Step must do nothing to slots which don't concern it.
type StepAction[P, S any] interface {
	Action
	Order() Order
	Step(params P, state S) error
}

// BeginRunAction is executed once before the first step of a run.
type BeginRunAction[P, S any] interface {
	Action
	BeginRun(params P, state S) error
}

// Base implements the Action interface and can be embedded in concrete
// actions.
type Base struct {
	id          ActionId
	label, desc string
}

// NewBase creates the shared part of an action.
func NewBase(id ActionId, label, desc string) Base {
	return Base{id, label, desc}
}

func (b *Base) ActionId() ActionId  { return b.id }
func (b *Base) Label() string       { return b.label }
func (b *Base) Description() string { return b.desc }

// StaticStep is a step action whose behavior is a single function.
type StaticStep[P, S any] struct {
	Base
	order Order
	step  func(P, S) error
}

// NewStaticStep wraps a function as a step action.
func NewStaticStep[P, S any](
	id ActionId, label, desc string, order Order, step func(P, S) error,
) *StaticStep[P, S] {
	return &StaticStep[P, S]{NewBase(id, label, desc), order, step}
}

func (a *StaticStep[P, S]) Order() Order { return a.order }

func (a *StaticStep[P, S]) Step(params P, state S) error {
	return a.step(params, state)
}
