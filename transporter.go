package gotrack

import (
	"context"
	"log/slog"
	"time"

	"github.com/phil-mansfield/gotrack/track"
)

// TransporterInput configures a Transporter.
type TransporterInput struct {
	// MaxSteps is the most iterations one event may take.
	MaxSteps int
	// StoreTrackCounts records the track counts of every iteration.
	StoreTrackCounts bool
	// StoreStepTimes records the wall time of every iteration.
	StoreStepTimes bool
}

// TransporterResult summarizes the transport of one event.
type TransporterResult struct {
	// Per-iteration history, filled in only if requested.
	Generated []int
	Active    []int
	Alive     []int
	Queued    []int
	StepTimes []float64

	// NumAborted counts tracks that were killed before finishing.
	NumAborted int
	// NumStepIters is the number of core iterations.
	NumStepIters int
	// NumSteps is the number of track steps, the active count summed over
	// iterations.
	NumSteps int
	// NumTracks is the number of tracks created from primaries and
	// secondaries.
	NumTracks int
	// MaxQueued is the largest number of tracks waiting for a slot after
	// any iteration.
	MaxQueued int
	// OpticalLost counts optical photons which were never tracked.
	OpticalLost int

	StepLimited bool
	Interrupted bool
	Exhausted   bool
}

// Transporter drives a Stepper through the transport of whole events,
// recording per-iteration diagnostics.
type Transporter struct {
	stepper *Stepper
	in      TransporterInput
	logger  *slog.Logger
}

// NewTransporter wraps a stepper.
func NewTransporter(st *Stepper, in TransporterInput) (*Transporter, error) {
	if st == nil {
		return nil, track.InvalidConfig("no stepper was given")
	}
	if in.MaxSteps <= 0 {
		return nil, track.InvalidConfig(
			"MaxSteps must be positive, got %d", in.MaxSteps,
		)
	}
	return &Transporter{st, in, st.logger}, nil
}

// Stepper returns the wrapped stepper.
func (tr *Transporter) Stepper() *Stepper { return tr.stepper }

// Transport transports primaries until every track and every deferred
// photon is finished. The loop ends early on cancellation of ctx, when
// MaxSteps iterations have run, or when track storage is exhausted: the
// remaining tracks are counted as aborted and the stepper is reset, so the
// next event starts clean. Only fatal errors are returned.
func (tr *Transporter) Transport(
	ctx context.Context, primaries []track.Primary,
) (TransporterResult, error) {
	st := tr.stepper
	res := TransporterResult{}

	if err := st.Push(primaries); err != nil {
		if n, ok := exhausted(err); ok {
			tr.logger.Warn("primaries don't fit in the initializer queue",
				"err", err)
			res.NumAborted, res.Exhausted = n, true
			return res, nil
		}
		return res, err
	}

	aborted := st.state.Counters().NumAborted
	st.takeDropped()
	var r StepperResult
	lost := 0
	for {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		if res.NumStepIters >= tr.in.MaxSteps {
			res.StepLimited = true
			break
		}

		t0 := time.Now()
		var err error
		r, err = st.Step()
		res.NumStepIters++
		res.NumSteps += r.Active
		res.NumTracks += r.Generated
		if r.Queued > res.MaxQueued { res.MaxQueued = r.Queued }
		if tr.in.StoreStepTimes {
			res.StepTimes = append(res.StepTimes, time.Since(t0).Seconds())
		}
		if tr.in.StoreTrackCounts {
			res.Generated = append(res.Generated, r.Generated)
			res.Active = append(res.Active, r.Active)
			res.Alive = append(res.Alive, r.Alive)
			res.Queued = append(res.Queued, r.Queued)
		}

		if err != nil {
			n, ok := exhausted(err)
			if !ok {
				st.ResetState()
				return res, err
			}
			tr.logger.Warn("track storage exhausted", "err", err)
			lost = n
			res.Exhausted = true
			break
		}

		if r.Continue() { continue }
		if err := st.flush(); err != nil {
			st.ResetState()
			return res, err
		}
		if st.state.NumQueued() == 0 && st.state.Arena().Size() == 0 { break }
	}

	res.NumAborted = st.state.Counters().NumAborted - aborted + lost
	res.OpticalLost = st.takeDropped()
	if res.Interrupted || res.StepLimited || res.Exhausted {
		res.NumAborted += st.state.NumUnfinished()
		res.OpticalLost += st.ResetState()
	}

	switch {
	case res.StepLimited:
		tr.logger.Error(
			"step limit reached", "max_steps", tr.in.MaxSteps,
			"alive", r.Alive, "queued", r.Queued,
		)
	case res.Interrupted:
		tr.logger.Warn("transport interrupted", "iterations", res.NumStepIters)
	}
	if res.NumAborted > 0 || res.OpticalLost > 0 {
		tr.logger.Warn(
			"tracks were aborted", "aborted", res.NumAborted,
			"optical_lost", res.OpticalLost,
		)
	}

	return res, nil
}
