package gotrack

import (
	"context"
	"fmt"

	"github.com/phil-mansfield/gotrack/track"
)

// PrimaryBuffer collects primaries handed over one at a time by an outside
// simulation and transports them in batches. A batch is transported
// automatically whenever the buffer fills.
type PrimaryBuffer struct {
	tr  *Transporter
	buf []track.Primary
	idx int

	lost    int
	batches int
	sum     TransporterResult
}

// NewPrimaryBuffer creates a buffer which transports batches of autoFlush
// primaries with tr.
func NewPrimaryBuffer(tr *Transporter, autoFlush int) (*PrimaryBuffer, error) {
	if autoFlush <= 0 {
		return nil, track.InvalidConfig(
			"AutoFlush must be positive, got %d", autoFlush,
		)
	}
	return &PrimaryBuffer{tr: tr, buf: make([]track.Primary, autoFlush)}, nil
}

// Append adds a primary to the buffer, flushing it if it's full. Primaries
// outside the world can never be transported: they are dropped and counted
// by Lost.
func (pb *PrimaryBuffer) Append(ctx context.Context, p track.Primary) error {
	geo := pb.tr.Stepper().Params().Geometry()
	if !geo.Inside(p.Position) {
		pb.lost++
		return nil
	}

	pb.buf[pb.idx] = p
	pb.idx++
	if pb.idx == len(pb.buf) { return pb.Flush(ctx) }
	return nil
}

// Flush transports the contents of the buffer. This is called
// automatically whenever the buffer fills.
func (pb *PrimaryBuffer) Flush(ctx context.Context) error {
	if pb.idx == 0 { return nil }

	res, err := pb.tr.Transport(ctx, pb.buf[:pb.idx])
	pb.idx = 0
	if err != nil { return err }

	pb.batches++
	pb.sum.NumAborted += res.NumAborted
	pb.sum.NumStepIters += res.NumStepIters
	pb.sum.NumSteps += res.NumSteps
	pb.sum.NumTracks += res.NumTracks
	if res.MaxQueued > pb.sum.MaxQueued { pb.sum.MaxQueued = res.MaxQueued }
	pb.sum.OpticalLost += res.OpticalLost
	pb.sum.StepLimited = pb.sum.StepLimited || res.StepLimited
	pb.sum.Interrupted = pb.sum.Interrupted || res.Interrupted
	pb.sum.Exhausted = pb.sum.Exhausted || res.Exhausted
	return nil
}

// Len returns the number of buffered primaries.
func (pb *PrimaryBuffer) Len() int { return pb.idx }

// Lost returns the number of primaries dropped for being outside the world.
func (pb *PrimaryBuffer) Lost() int { return pb.lost }

// Batches returns the number of transported batches.
func (pb *PrimaryBuffer) Batches() int { return pb.batches }

// Result returns the summed counts of every transported batch.
func (pb *PrimaryBuffer) Result() TransporterResult { return pb.sum }

// Finalize checks that every primary has been transported.
func (pb *PrimaryBuffer) Finalize() error {
	if pb.idx > 0 {
		return fmt.Errorf(
			"%d buffered primaries were never transported", pb.idx,
		)
	}
	return nil
}
