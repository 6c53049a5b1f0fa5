package gotrack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phil-mansfield/gotrack/core"
	"github.com/phil-mansfield/gotrack/track"
)

// RunnerInput configures a Runner.
type RunnerInput struct {
	Params *core.Params
	// NumStreams is the number of concurrent streams. It can't be larger
	// than the MaxStreams of Params.
	NumStreams    int
	NumTrackSlots int
	ActionTimes   bool
	// WarmUp runs one empty iteration on each stream before transport.
	WarmUp bool

	Transporter TransporterInput
}

// Runner transports independent events on several streams at once. Each
// stream has its own Stepper and processes one event at a time.
type Runner struct {
	params       *core.Params
	transporters []*Transporter
	warmUp       bool
	logger       *slog.Logger
}

// NewRunner creates a stepper and transporter for every stream.
func NewRunner(in RunnerInput) (*Runner, error) {
	switch {
	case in.Params == nil:
		return nil, track.InvalidConfig("no core params were given")
	case in.NumStreams <= 0 || in.NumStreams > in.Params.MaxStreams():
		return nil, track.InvalidConfig(
			"NumStreams must be in the range [1, %d], got %d",
			in.Params.MaxStreams(), in.NumStreams,
		)
	}

	r := &Runner{
		params: in.Params, warmUp: in.WarmUp,
		logger: in.Params.Logger(),
	}
	for i := 0; i < in.NumStreams; i++ {
		st, err := NewStepper(StepperInput{
			Params: in.Params, StreamId: track.StreamId(i),
			NumTrackSlots: in.NumTrackSlots, ActionTimes: in.ActionTimes,
		})
		if err != nil { return nil, fmt.Errorf("stream %d: %w", i, err) }

		tr, err := NewTransporter(st, in.Transporter)
		if err != nil { return nil, err }
		r.transporters = append(r.transporters, tr)
	}

	return r, nil
}

// NumStreams returns the number of streams.
func (r *Runner) NumStreams() int { return len(r.transporters) }

// Transporter returns the transporter of a stream.
func (r *Runner) Transporter(stream track.StreamId) *Transporter {
	return r.transporters[stream]
}

// Run transports events concurrently. events[i] holds the primaries of
// event i, and the returned results are indexed the same way. The results
// don't depend on the number of streams or on which stream ran an event.
//
// Errors from all streams are collected; each is logged and the first is
// returned once every stream has stopped.
func (r *Runner) Run(
	ctx context.Context, events [][]track.Primary,
) ([]TransporterResult, error) {
	if len(events) > r.params.Init().MaxEvents {
		return nil, track.InvalidConfig(
			"%d events were given, but MaxEvents is %d",
			len(events), r.params.Init().MaxEvents,
		)
	}
	for i, prims := range events {
		for j := range prims {
			if prims[j].Event != track.EventId(i) {
				return nil, track.InvalidConfig(
					"primary %d of event %d has event id %d",
					j, i, prims[j].Event,
				)
			}
		}
	}

	results := make([]TransporterResult, len(events))
	h := &core.MultiErrorHandler{}

	jobs := make(chan int, len(events))
	for i := range events { jobs <- i }
	close(jobs)

	workers := len(r.transporters)
	out := make(chan int, workers)
	for id := 0; id < workers-1; id++ {
		go r.runStream(ctx, id, events, jobs, results, h, out)
	}
	r.runStream(ctx, workers-1, events, jobs, results, h, out)

	for i := 0; i < workers; i++ { <-out }

	return results, h.Result(r.logger)
}

func (r *Runner) runStream(
	ctx context.Context, id int, events [][]track.Primary, jobs <-chan int,
	results []TransporterResult, h *core.MultiErrorHandler, out chan<- int,
) {
	defer func() { out <- id }()

	tr := r.transporters[id]
	st := tr.Stepper()
	if r.warmUp {
		if err := st.WarmUp(); err != nil {
			h.Add(fmt.Errorf("warming up stream %d: %w", id, err))
			return
		}
	}

	for i := range jobs {
		if h.Len() > 0 { return }

		if err := st.Reseed(track.EventId(i)); err != nil {
			h.Add(err)
			return
		}
		res, err := tr.Transport(ctx, events[i])
		results[i] = res
		if err != nil {
			h.Add(fmt.Errorf("event %d on stream %d: %w", i, id, err))
			return
		}
		r.logger.Debug("event finished", "stream", id, "event", i,
			"iterations", res.NumStepIters, "aborted", res.NumAborted)
	}
}
