package action

import (
	"fmt"
	"sort"
	"time"
)

// Options control how a Sequence runs.
type Options struct {
	// ActionTimes accumulates the wall time spent in each action.
	ActionTimes bool
}

// Sequence runs the step actions of a registry in (order, id) order. Each
// action finishes its work on every slot before the next one starts.
type Sequence[P, S any] struct {
	opts  Options
	steps []StepAction[P, S]
	begin []BeginRunAction[P, S]
	times []time.Duration
}

// NewSequence collects the step and begin-run actions of a frozen
// registry. Actions which aren't StepActions for this parameter/state pair
// are skipped.
func NewSequence[P, S any](reg *Registry, opts Options) (*Sequence[P, S], error) {
	if !reg.Frozen() {
		return nil, fmt.Errorf("sequence must be built from a frozen registry")
	}

	seq := &Sequence[P, S]{opts: opts}
	for _, a := range reg.Actions() {
		if step, ok := a.(StepAction[P, S]); ok {
			seq.steps = append(seq.steps, step)
		}
		if begin, ok := a.(BeginRunAction[P, S]); ok {
			seq.begin = append(seq.begin, begin)
		}
	}
	sort.SliceStable(seq.steps, func(i, j int) bool {
		oi, oj := seq.steps[i].Order(), seq.steps[j].Order()
		if oi != oj { return oi < oj }
		return seq.steps[i].ActionId() < seq.steps[j].ActionId()
	})

	if len(seq.steps) == 0 {
		return nil, fmt.Errorf("no step actions are registered")
	}
	if opts.ActionTimes { seq.times = make([]time.Duration, len(seq.steps)) }

	return seq, nil
}

// BeginRun calls every begin-run action.
func (seq *Sequence[P, S]) BeginRun(params P, state S) error {
	for _, a := range seq.begin {
		if err := a.BeginRun(params, state); err != nil {
			return fmt.Errorf("begin run of action '%s': %w", a.Label(), err)
		}
	}
	return nil
}

// Step runs every step action once. The first error stops the sequence.
func (seq *Sequence[P, S]) Step(params P, state S) error {
	if !seq.opts.ActionTimes { return seq.run(params, state) }

	for i, a := range seq.steps {
		start := time.Now()
		err := a.Step(params, state)
		seq.times[i] += time.Since(start)
		if err != nil {
			return fmt.Errorf("action '%s': %w", a.Label(), err)
		}
	}
	return nil
}

// Warmup runs every step action once without timing it.
func (seq *Sequence[P, S]) Warmup(params P, state S) error {
	return seq.run(params, state)
}

func (seq *Sequence[P, S]) run(params P, state S) error {
	for _, a := range seq.steps {
		if err := a.Step(params, state); err != nil {
			return fmt.Errorf("action '%s': %w", a.Label(), err)
		}
	}
	return nil
}

// Actions returns the step actions in execution order.
func (seq *Sequence[P, S]) Actions() []StepAction[P, S] { return seq.steps }

// Times returns the accumulated wall time in seconds of each action, keyed
// by label. It is empty unless ActionTimes is set.
func (seq *Sequence[P, S]) Times() map[string]float64 {
	out := map[string]float64{}
	for i, dt := range seq.times {
		out[seq.steps[i].Label()] = dt.Seconds()
	}
	return out
}
