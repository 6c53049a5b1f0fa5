/*package gotrack steps batches of particle tracks through a voxel world.

Each stream owns a Stepper, which holds a fixed-size arena of track slots and
a bounded queue of track initializers. An iteration drains the queue into
empty slots and then runs every registered step action over the whole
arena. A Transporter drives a Stepper to completion for one event and a
Runner spreads events over many streams.
*/
package gotrack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phil-mansfield/gotrack/action"
	"github.com/phil-mansfield/gotrack/core"
	"github.com/phil-mansfield/gotrack/track"
)

// ErrInvalidConfig is returned for configurations which can never run.
var ErrInvalidConfig = track.ErrInvalidConfig

// StepperInput configures a Stepper.
type StepperInput struct {
	Params   *core.Params
	StreamId track.StreamId
	// NumTrackSlots is the size of the track arena.
	NumTrackSlots int
	// ActionTimes accumulates the wall time spent in each step action.
	ActionTimes bool
}

// StepperResult are the track counts at the end of one iteration.
type StepperResult struct {
	// Initializers created this iteration.
	Generated int
	// Tracks waiting for a slot.
	Queued int
	// Occupied slots after initialization.
	Active int
	// Occupied slots after cleanup.
	Alive int
}

// Continue returns true if another iteration has work to do.
func (r StepperResult) Continue() bool { return r.Alive > 0 || r.Queued > 0 }

// RunResult is the outcome of Stepper.Run.
type RunResult struct {
	// Result of the final iteration.
	Result     StepperResult
	Iterations int
	// NumAborted counts tracks that were killed before finishing.
	NumAborted int
	// OpticalLost counts buffered optical photons which were never tracked.
	OpticalLost int

	StepLimited bool
	Interrupted bool
}

// Stepper runs step iterations over the tracks of a single stream. It isn't
// safe for concurrent use: each goroutine needs its own Stepper.
type Stepper struct {
	params *core.Params
	state  *core.State
	seq    *core.Sequence
	logger *slog.Logger
}

// NewStepper creates the track state of one stream. The first Stepper
// freezes its Params.
func NewStepper(in StepperInput) (*Stepper, error) {
	switch {
	case in.Params == nil:
		return nil, track.InvalidConfig("no core params were given")
	case in.NumTrackSlots <= 0:
		return nil, track.InvalidConfig(
			"NumTrackSlots must be positive, got %d", in.NumTrackSlots,
		)
	}
	if _, ok := in.Params.Actions().Find(core.ExtendFromPrimariesLabel); !ok {
		return nil, track.InvalidConfig(
			"action '%s' is not registered", core.ExtendFromPrimariesLabel,
		)
	}

	state, err := core.NewState(in.Params, in.StreamId, in.NumTrackSlots)
	if err != nil { return nil, err }

	seq, err := action.NewSequence[*core.Params, *core.State](
		in.Params.Actions(), action.Options{ActionTimes: in.ActionTimes},
	)
	if err != nil { return nil, err }

	logger := in.Params.Logger().With("stream", int(in.StreamId))
	return &Stepper{in.Params, state, seq, logger}, nil
}

// BeginRun runs the begin-of-run actions. It is optional.
func (st *Stepper) BeginRun() error {
	return st.seq.BeginRun(st.params, st.state)
}

// WarmUp runs one iteration over an empty arena so that every action
// allocates its scratch space. It doesn't change the result of later
// iterations.
func (st *Stepper) WarmUp() error {
	if n := st.state.Arena().Size(); n > 0 {
		return fmt.Errorf("cannot warm up with %d active tracks", n)
	}
	if st.state.NumQueued() > 0 {
		return fmt.Errorf(
			"cannot warm up with %d queued tracks", st.state.NumQueued(),
		)
	}

	st.state.SetWarmingUp(true)
	defer st.state.SetWarmingUp(false)
	return st.seq.Warmup(st.params, st.state)
}

// Push stages primaries to be initialized on the next iteration. Either
// every primary is accepted or none are.
func (st *Stepper) Push(primaries []track.Primary) error {
	return st.state.PushPrimaries(primaries)
}

// Step runs exactly one iteration: drain queued initializers into empty
// slots, then run every step action over the arena.
func (st *Stepper) Step() (StepperResult, error) {
	st.state.Counters().BeginStep()
	err := st.seq.Step(st.params, st.state)
	return st.result(), err
}

// StepPrimaries pushes primaries and runs one iteration.
func (st *Stepper) StepPrimaries(primaries []track.Primary) (StepperResult, error) {
	if err := st.Push(primaries); err != nil { return st.result(), err }
	return st.Step()
}

func (st *Stepper) result() StepperResult {
	c := st.state.Counters()
	return StepperResult{
		Generated: c.NumGenerated,
		Queued:    st.state.NumQueued(),
		Active:    c.NumActive,
		Alive:     c.NumAlive,
	}
}

// Run pushes primaries and iterates until no tracks remain and all deferred
// optical work has been flushed. Reaching maxSteps iterations or
// cancellation of ctx aborts the remaining tracks, which are counted and
// logged rather than returned as an error. Resource exhaustion aborts the
// loop the same way. The caller should call ResetState after an abort.
func (st *Stepper) Run(
	ctx context.Context, primaries []track.Primary, maxSteps int,
) (RunResult, error) {
	if maxSteps <= 0 {
		return RunResult{}, track.InvalidConfig(
			"maxSteps must be positive, got %d", maxSteps,
		)
	}
	if err := st.Push(primaries); err != nil {
		n, ok := exhausted(err)
		if !ok { return RunResult{}, err }
		st.logger.Warn("primaries don't fit in the initializer queue",
			"err", err)
		return RunResult{Result: st.result(), NumAborted: n}, nil
	}

	res := RunResult{Result: st.result()}
	aborted := st.state.Counters().NumAborted
	st.takeDropped()
	lost, full := 0, false
	for {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		if res.Iterations >= maxSteps {
			res.StepLimited = true
			break
		}

		r, err := st.Step()
		res.Result = r
		res.Iterations++
		if err != nil {
			n, ok := exhausted(err)
			if !ok { return res, err }
			st.logger.Warn("track storage exhausted", "err", err)
			lost, full = n, true
			break
		}

		if r.Continue() { continue }
		if err := st.flush(); err != nil { return res, err }
		if st.state.NumQueued() == 0 && st.state.Arena().Size() == 0 { break }
	}

	res.NumAborted = st.state.Counters().NumAborted - aborted + lost
	res.OpticalLost = st.takeDropped()
	if res.Interrupted || res.StepLimited || full {
		res.NumAborted += st.state.NumUnfinished()
		res.OpticalLost += st.pendingOptical()
	}

	switch {
	case res.StepLimited:
		st.logger.Error(
			"step limit reached", "max_steps", maxSteps,
			"alive", res.Result.Alive, "queued", res.Result.Queued,
		)
	case res.Interrupted:
		st.logger.Warn("stepping interrupted", "iterations", res.Iterations)
	}
	if res.NumAborted > 0 {
		st.logger.Warn(
			"tracks were aborted", "aborted", res.NumAborted,
			"optical_lost", res.OpticalLost,
		)
	}

	return res, nil
}

// flush runs all deferred work from aux state.
func (st *Stepper) flush() error {
	for _, f := range st.params.Flushers() {
		if f.Pending(st.state) == 0 { continue }
		if err := f.Flush(st.state); err != nil {
			return fmt.Errorf("flushing '%s': %w", f.Label(), err)
		}
	}
	return nil
}

func (st *Stepper) pendingOptical() int {
	n := 0
	for _, f := range st.params.Flushers() { n += f.Pending(st.state) }
	return n
}

// takeDropped collects the deferred items, such as optical photons, which
// aux data dropped since the last call.
func (st *Stepper) takeDropped() int {
	n := 0
	for _, f := range st.params.Flushers() { n += f.TakeDropped(st.state) }
	return n
}

// exhausted returns true if err is a recoverable capacity error, along
// with the number of core tracks it lost. Deferred items lost to a full
// aux buffer are reported by the aux data itself.
func exhausted(err error) (tracks int, ok bool) {
	var cerr *track.CapacityError
	if !errors.As(err, &cerr) { return 0, false }
	if errors.Is(err, track.ErrQueueOverflow) ||
		errors.Is(err, track.ErrSlotsExhausted) {
		return cerr.Request, true
	}
	return 0, true
}

// KillActive kills every track in the arena. The tracks are counted as
// aborted by the next iteration's cleanup.
func (st *Stepper) KillActive() {
	a := st.state.Arena()
	for _, slot := range a.Occupants(nil) {
		if !a.Status[slot].Dead() { a.Kill(slot, true) }
	}
}

// Reseed restarts the track numbering of an event. Since every track's
// random stream is derived from its event and track ids, this makes an
// event's transport independent of what the stream ran before.
func (st *Stepper) Reseed(event track.EventId) error {
	if !event.Valid() || int(event) >= st.params.Init().MaxEvents {
		return track.InvalidConfig(
			"event %d is outside the range [0, %d)",
			event, st.params.Init().MaxEvents,
		)
	}
	st.state.ResetEvent(event)
	return nil
}

// ResetState empties the arena, the initializer queue and all aux buffers.
// It returns the number of deferred items (optical photons) that were
// dropped.
func (st *Stepper) ResetState() int {
	return st.state.Reset()
}

// Actions returns the step actions in the order they run.
func (st *Stepper) Actions() []core.StepAction { return st.seq.Actions() }

// ActionTimes returns the accumulated time spent in each action, in
// seconds, if ActionTimes was enabled.
func (st *Stepper) ActionTimes() map[string]float64 { return st.seq.Times() }

// State returns the stream's track state.
func (st *Stepper) State() *core.State { return st.state }

// Params returns the shared core parameters.
func (st *Stepper) Params() *core.Params { return st.params }
