package gotrack

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/gotrack/action"
	"github.com/phil-mansfield/gotrack/core"
	"github.com/phil-mansfield/gotrack/geom"
	"github.com/phil-mansfield/gotrack/optical"
	"github.com/phil-mansfield/gotrack/phys"
	"github.com/phil-mansfield/gotrack/track"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	streams  int
	capacity int
	optical  bool
	logger   *slog.Logger
	order    track.TrackOrder
	// Optical overrides: photon buffer size, photons per MeV, and the
	// iteration limit of the optical loop.
	buffer   int
	yield    float64
	maxIters int
}

func newParams(t *testing.T, f fixture) *core.Params {
	geo, err := geom.NewGeometry(
		mgl64.Vec3{-50, -50, -50}, [3]int{4, 4, 4}, 25, []int{0},
	)
	require.NoError(t, err)
	geo.SetDetector(geo.Cell(3, 3, 3))

	particles, err := phys.NewParticles(phys.DefaultParticles())
	require.NoError(t, err)
	physics, err := phys.NewPhysics(phys.PhysicsInput{
		Particles: particles, Materials: []phys.Material{{Name: "water", Density: 1}},
	})
	require.NoError(t, err)

	if f.streams == 0 { f.streams = 1 }
	if f.logger == nil { f.logger = quiet }
	if f.capacity == 0 { f.capacity = 4096 }
	if f.buffer == 0 { f.buffer = 100000 }
	if f.yield == 0 { f.yield = 10 }

	p, err := core.NewParams(core.ParamsInput{
		Geometry: geo, Physics: physics,
		Init: core.InitInput{
			Capacity: f.capacity, MaxEvents: 8, TrackOrder: f.order,
		},
		Seed:       2024,
		MaxStreams: f.streams,
		Logger:     f.logger,
	})
	require.NoError(t, err)

	if f.optical {
		_, err := optical.NewCollector(p, optical.ParamsInput{
			AbsorptionLength:    []float64{20},
			YieldPerMeV:         f.yield,
			NumTrackSlots:       64,
			InitializerCapacity: 256,
			BufferCapacity:      f.buffer,
			AutoFlush:           min(500, f.buffer),
			MaxStepIters:        f.maxIters,
		})
		require.NoError(t, err)
	}
	return p
}

func collector(t *testing.T, p *core.Params) *optical.Collector {
	for _, f := range p.Flushers() {
		if c, ok := f.(*optical.Collector); ok { return c }
	}
	t.Fatal("no optical collector was registered")
	return nil
}

func newStepper(t *testing.T, p *core.Params, slots int) *Stepper {
	st, err := NewStepper(StepperInput{Params: p, NumTrackSlots: slots})
	require.NoError(t, err)
	return st
}

func primaries(p *core.Params, n, pdg int, energy float64, event int) []track.Primary {
	id := p.Particles().Find(pdg)
	out := make([]track.Primary, n)
	for i := range out {
		out[i] = track.Primary{
			Particle: id, Energy: energy,
			Direction: mgl64.Vec3{0, 0, 1}, Event: track.EventId(event),
		}
	}
	return out
}

func TestNewStepperErrors(t *testing.T) {
	p := newParams(t, fixture{})

	table := []StepperInput{
		{Params: nil, NumTrackSlots: 8},
		{Params: p, NumTrackSlots: 0},
		{Params: p, NumTrackSlots: 8, StreamId: 1},
		{Params: p, NumTrackSlots: 8, StreamId: -1},
	}
	for i, in := range table {
		_, err := NewStepper(in)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%d) Expected an invalid configuration error, got %v.", i, err)
		}
	}
}

func TestStepperResultContinue(t *testing.T) {
	table := []struct {
		r    StepperResult
		cont bool
	}{
		{StepperResult{}, false},
		{StepperResult{Active: 3}, false},
		{StepperResult{Alive: 1}, true},
		{StepperResult{Queued: 1}, true},
		{StepperResult{Generated: 4, Queued: 4}, true},
	}
	for i, test := range table {
		if test.r.Continue() != test.cont {
			t.Errorf("%d) Expected Continue() = %v for %+v.",
				i, test.cont, test.r)
		}
	}
}

func TestStepFillsArena(t *testing.T) {
	p := newParams(t, fixture{})
	st := newStepper(t, p, 16)

	r, err := st.StepPrimaries(primaries(p, 8, 22, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, 8, r.Active)
	assert.Equal(t, 8, r.Generated)

	a := st.State().Arena()
	for slot := track.TrackSlotId(0); slot < 8; slot++ {
		assert.Equal(t, track.TrackId(slot), a.Track[slot], "slot %d", slot)
	}

	iters := 1
	for ; r.Continue() && iters < 10000; iters++ {
		prev := r
		r, err = st.Step()
		require.NoError(t, err)
		assert.LessOrEqual(t, r.Active, prev.Alive+prev.Queued)
		assert.LessOrEqual(t, r.Active, 16)
	}
	assert.Equal(t, 0, r.Alive)
	assert.Equal(t, 0, r.Queued)
	assert.Equal(t, 0, a.Size())
}

func TestWarmUp(t *testing.T) {
	history := func(warmups int) []int {
		p := newParams(t, fixture{})
		st := newStepper(t, p, 32)
		for i := 0; i < warmups; i++ { require.NoError(t, st.WarmUp()) }

		tr, err := NewTransporter(st, TransporterInput{
			MaxSteps: 10000, StoreTrackCounts: true,
		})
		require.NoError(t, err)
		res, err := tr.Transport(context.Background(), primaries(p, 20, 22, 5, 0))
		require.NoError(t, err)
		return append(res.Active, res.Alive...)
	}

	cold := history(0)
	assert.Equal(t, cold, history(1))
	assert.Equal(t, cold, history(3))

	p := newParams(t, fixture{})
	st := newStepper(t, p, 32)
	_, err := st.StepPrimaries(primaries(p, 4, 22, 5, 0))
	require.NoError(t, err)
	assert.Error(t, st.WarmUp(), "warm-up needs an empty arena")
}

func TestRunCompletes(t *testing.T) {
	p := newParams(t, fixture{})
	st := newStepper(t, p, 64)

	res, err := st.Run(context.Background(), primaries(p, 10, 11, 20, 0), 10000)
	require.NoError(t, err)
	assert.False(t, res.StepLimited)
	assert.False(t, res.Interrupted)
	assert.Equal(t, 0, res.NumAborted)
	assert.False(t, res.Result.Continue())
	assert.Equal(t, 0, st.State().Arena().Size())

	_, err = st.Run(context.Background(), nil, 0)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestRunStepLimit(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	p := newParams(t, fixture{logger: logger})
	st := newStepper(t, p, 64)

	res, err := st.Run(context.Background(), primaries(p, 40, 22, 10, 0), 1)
	require.NoError(t, err)
	assert.True(t, res.StepLimited)
	assert.Equal(t, 1, res.Iterations)
	require.Greater(t, res.NumAborted, 0)
	assert.Equal(t, res.Result.Alive+res.Result.Queued, res.NumAborted)

	out := buf.String()
	assert.True(t, strings.Contains(out, "level=WARN"), out)
	assert.True(t, strings.Contains(out, "tracks were aborted"), out)
	assert.True(t, strings.Contains(out, "level=ERROR"), out)

	st.ResetState()
	assert.Equal(t, 0, st.State().Arena().Size())
	assert.Equal(t, 0, st.State().NumQueued())
}

func TestRunInterrupted(t *testing.T) {
	p := newParams(t, fixture{})

	// An extra action cancels the context during the first iteration.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupt := action.NewStaticStep(
		p.Actions().NextId(), "interrupt", "cancel the run",
		action.OrderEnd, func(*core.Params, *core.State) error {
			cancel()
			return nil
		},
	)
	require.NoError(t, p.Actions().Insert(interrupt))

	st := newStepper(t, p, 64)
	res, err := st.Run(ctx, primaries(p, 40, 22, 10, 0), 10000)
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.False(t, res.StepLimited)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, res.Result.Alive+res.Result.Queued, res.NumAborted)

	// A cancelled context stops the loop before any iteration.
	res, err = st.Run(ctx, nil, 10000)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Iterations)

	st.ResetState()
	assert.Equal(t, 0, st.State().Arena().Size())
	assert.Equal(t, 0, st.State().NumQueued())

	// The stepper can be reused after a reset.
	res, err = st.Run(context.Background(), primaries(p, 5, 22, 1, 1), 10000)
	require.NoError(t, err)
	assert.False(t, res.Result.Continue())
}

func TestKillActive(t *testing.T) {
	p := newParams(t, fixture{})
	st := newStepper(t, p, 64)

	r, err := st.StepPrimaries(primaries(p, 10, 22, 10, 0))
	require.NoError(t, err)
	require.Greater(t, r.Alive, 0)
	alive := r.Alive

	st.KillActive()
	r, err = st.Step()
	require.NoError(t, err)
	assert.Equal(t, 0, r.Alive)
	assert.GreaterOrEqual(t, st.State().Counters().NumAborted, alive)
}

func TestReseed(t *testing.T) {
	p := newParams(t, fixture{})
	st := newStepper(t, p, 8)
	assert.NoError(t, st.Reseed(7))
	assert.True(t, errors.Is(st.Reseed(8), ErrInvalidConfig))
	assert.True(t, errors.Is(st.Reseed(-1), ErrInvalidConfig))
}

func TestTransporter(t *testing.T) {
	p := newParams(t, fixture{})
	st := newStepper(t, p, 64)

	_, err := NewTransporter(st, TransporterInput{MaxSteps: 0})
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	tr, err := NewTransporter(st, TransporterInput{
		MaxSteps: 10000, StoreTrackCounts: true, StoreStepTimes: true,
	})
	require.NoError(t, err)

	res, err := tr.Transport(context.Background(), primaries(p, 16, 11, 10, 0))
	require.NoError(t, err)
	n := res.NumStepIters
	require.Greater(t, n, 0)
	assert.Len(t, res.Active, n)
	assert.Len(t, res.Alive, n)
	assert.Len(t, res.Queued, n)
	assert.Len(t, res.Generated, n)
	assert.Len(t, res.StepTimes, n)
	assert.Equal(t, 16, res.Active[0])
	assert.Equal(t, 0, res.Alive[n-1])
	assert.Equal(t, 0, res.NumAborted)

	steps, tracks, maxQueued := 0, 0, 0
	for i := 0; i < n; i++ {
		steps += res.Active[i]
		tracks += res.Generated[i]
		if res.Queued[i] > maxQueued { maxQueued = res.Queued[i] }
	}
	assert.Equal(t, steps, res.NumSteps)
	assert.Equal(t, tracks, res.NumTracks)
	assert.Equal(t, maxQueued, res.MaxQueued)
	assert.GreaterOrEqual(t, res.NumTracks, 16)
	assert.Greater(t, res.NumSteps, res.NumTracks)

	tr.in.MaxSteps = 2
	res, err = tr.Transport(context.Background(), primaries(p, 16, 22, 10, 1))
	require.NoError(t, err)
	assert.True(t, res.StepLimited)
	assert.Equal(t, 2, res.NumStepIters)
	assert.Greater(t, res.NumAborted, 0)
	assert.Equal(t, 0, st.State().Arena().Size(), "aborted transport resets")
	assert.Equal(t, 0, st.State().NumQueued())
}

func TestTransporterOptical(t *testing.T) {
	p := newParams(t, fixture{optical: true})
	st := newStepper(t, p, 64)
	tr, err := NewTransporter(st, TransporterInput{MaxSteps: 10000})
	require.NoError(t, err)

	res, err := tr.Transport(context.Background(), primaries(p, 8, 11, 20, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, res.NumAborted)
	assert.Equal(t, 0, res.OpticalLost)

	for _, f := range p.Flushers() {
		assert.Equal(t, 0, f.Pending(st.State()), f.Label())
	}
}

// emptied checks that nothing is left of an event in a stepper.
func emptied(t *testing.T, p *core.Params, st *Stepper) {
	t.Helper()
	assert.Equal(t, 0, st.State().Arena().Size())
	assert.Equal(t, 0, st.State().NumQueued())
	assert.Equal(t, 0, st.State().NumUnfinished())
	for _, f := range p.Flushers() {
		assert.Equal(t, 0, f.Pending(st.State()), f.Label())
	}
}

func TestTransportQueueOverflow(t *testing.T) {
	// Slow positrons stop in their first step and each annihilate into two
	// photons, which can't fit in a queue sized for the primaries.
	p := newParams(t, fixture{capacity: 8})
	st := newStepper(t, p, 16)
	tr, err := NewTransporter(st, TransporterInput{MaxSteps: 100})
	require.NoError(t, err)

	res, err := tr.Transport(context.Background(), primaries(p, 8, -11, 0.0015, 0))
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.False(t, res.StepLimited)
	assert.False(t, res.Interrupted)
	assert.Equal(t, 1, res.NumStepIters)
	assert.Equal(t, 16, res.NumAborted)
	assert.Equal(t, 0, res.OpticalLost)
	emptied(t, p, st)

	// The next event starts clean, and two photons fit.
	res, err = tr.Transport(context.Background(), primaries(p, 1, -11, 0.0015, 1))
	require.NoError(t, err)
	assert.False(t, res.Exhausted)
	assert.Equal(t, 0, res.NumAborted)
	assert.GreaterOrEqual(t, res.NumTracks, 3)
	emptied(t, p, st)
}

func TestRunQueueOverflow(t *testing.T) {
	p := newParams(t, fixture{capacity: 8})
	st := newStepper(t, p, 16)

	res, err := st.Run(context.Background(), primaries(p, 8, -11, 0.0015, 0), 100)
	require.NoError(t, err)
	assert.False(t, res.StepLimited)
	assert.False(t, res.Interrupted)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 16, res.NumAborted)
	assert.Equal(t, 0, res.OpticalLost)

	assert.Equal(t, 0, st.ResetState())
	emptied(t, p, st)
}

func TestTransportOpticalOverflow(t *testing.T) {
	// Each slow electron deposits all of its energy in one step and
	// offloads about 1500 photons, more than the buffer holds.
	p := newParams(t, fixture{optical: true, buffer: 100, yield: 1e6})
	c := collector(t, p)
	st := newStepper(t, p, 16)
	tr, err := NewTransporter(st, TransporterInput{MaxSteps: 100})
	require.NoError(t, err)

	res, err := tr.Transport(context.Background(), primaries(p, 4, 11, 0.0015, 0))
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Equal(t, 1, res.NumStepIters)
	assert.Equal(t, 0, res.NumAborted, "stopped electrons aren't aborted")
	assert.Equal(t, c.Counters(st.State()).NumLost, res.OpticalLost)
	assert.GreaterOrEqual(t, res.OpticalLost, 4*1499)
	assert.LessOrEqual(t, res.OpticalLost, 4*1501)
	emptied(t, p, st)

	// Nothing carries over into the next event.
	res, err = tr.Transport(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.Exhausted)
	assert.Equal(t, 0, res.NumAborted)
	assert.Equal(t, 0, res.OpticalLost)
}

func TestRunOpticalOverflow(t *testing.T) {
	p := newParams(t, fixture{optical: true, buffer: 100, yield: 1e6})
	c := collector(t, p)
	st := newStepper(t, p, 16)

	res, err := st.Run(context.Background(), primaries(p, 4, 11, 0.0015, 0), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 0, res.NumAborted)
	assert.Equal(t, c.Counters(st.State()).NumLost, res.OpticalLost)
	assert.GreaterOrEqual(t, res.OpticalLost, 4*1499)

	// Dead tracks wait in their slots until the state is reset.
	assert.Equal(t, 0, st.State().NumUnfinished())
	assert.Equal(t, 0, st.ResetState())
	emptied(t, p, st)
}

func TestTransportOpticalIterationLimit(t *testing.T) {
	// One optical iteration can't finish a flush, so every flush drops
	// its remaining photons.
	p := newParams(t, fixture{optical: true, maxIters: 1})
	c := collector(t, p)
	st := newStepper(t, p, 64)
	tr, err := NewTransporter(st, TransporterInput{MaxSteps: 10000})
	require.NoError(t, err)

	res, err := tr.Transport(context.Background(), primaries(p, 8, 11, 20, 0))
	require.NoError(t, err)
	assert.False(t, res.Exhausted)
	assert.False(t, res.StepLimited)
	assert.Equal(t, 0, res.NumAborted)
	assert.Greater(t, res.OpticalLost, 0)
	assert.Equal(t, c.Counters(st.State()).NumLost, res.OpticalLost)
	emptied(t, p, st)

	// Drops are reported once.
	lost := res.OpticalLost
	res, err = tr.Transport(context.Background(), primaries(p, 1, 22, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, c.Counters(st.State()).NumLost-lost, res.OpticalLost)
}

func TestDeterminism(t *testing.T) {
	run := func(order track.TrackOrder) TransporterResult {
		p := newParams(t, fixture{optical: true, order: order})
		st := newStepper(t, p, 128)
		tr, err := NewTransporter(st, TransporterInput{
			MaxSteps: 10000, StoreTrackCounts: true,
		})
		require.NoError(t, err)

		prims := append(primaries(p, 30, 22, 10, 0), primaries(p, 30, 11, 10, 0)...)
		res, err := tr.Transport(context.Background(), prims)
		require.NoError(t, err)
		return res
	}

	for order := track.OrderNone; order < track.EndTrackOrder; order++ {
		a, b := run(order), run(order)
		assert.Equal(t, a.Active, b.Active, "order %s", order)
		assert.Equal(t, a.Alive, b.Alive, "order %s", order)
		assert.Equal(t, a.Generated, b.Generated, "order %s", order)
	}
}

func TestRunner(t *testing.T) {
	events := func(p *core.Params) [][]track.Primary {
		out := [][]track.Primary{}
		for i := 0; i < 6; i++ {
			out = append(out, primaries(p, 10+i, 22, 5+float64(i), i))
		}
		return out
	}
	run := func(streams int) []TransporterResult {
		p := newParams(t, fixture{streams: streams, optical: true})
		r, err := NewRunner(RunnerInput{
			Params: p, NumStreams: streams, NumTrackSlots: 64, WarmUp: true,
			Transporter: TransporterInput{MaxSteps: 10000, StoreTrackCounts: true},
		})
		require.NoError(t, err)
		assert.Equal(t, streams, r.NumStreams())

		res, err := r.Run(context.Background(), events(p))
		require.NoError(t, err)
		return res
	}

	serial, parallel := run(1), run(3)
	require.Len(t, serial, 6)
	require.Len(t, parallel, 6)
	for i := range serial {
		assert.Equal(t, serial[i].Active, parallel[i].Active, "event %d", i)
		assert.Equal(t, serial[i].Alive, parallel[i].Alive, "event %d", i)
		assert.Equal(t, 10+i, serial[i].Active[0], "event %d", i)
	}
}

func TestRunnerErrors(t *testing.T) {
	p := newParams(t, fixture{streams: 2})

	_, err := NewRunner(RunnerInput{Params: p, NumStreams: 3, NumTrackSlots: 8,
		Transporter: TransporterInput{MaxSteps: 10}})
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	r, err := NewRunner(RunnerInput{Params: p, NumStreams: 2, NumTrackSlots: 8,
		Transporter: TransporterInput{MaxSteps: 10}})
	require.NoError(t, err)

	// Primaries must carry the id of the event they're listed under.
	_, err = r.Run(context.Background(), [][]track.Primary{primaries(p, 2, 22, 1, 1)})
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = r.Run(context.Background(), make([][]track.Primary, 9))
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestPrimaryBuffer(t *testing.T) {
	p := newParams(t, fixture{})
	st := newStepper(t, p, 64)
	tr, err := NewTransporter(st, TransporterInput{MaxSteps: 10000})
	require.NoError(t, err)

	_, err = NewPrimaryBuffer(tr, 0)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	pb, err := NewPrimaryBuffer(tr, 4)
	require.NoError(t, err)
	ctx := context.Background()

	prims := primaries(p, 10, 22, 2, 0)
	prims[3].Position = mgl64.Vec3{1000, 0, 0}
	for _, prim := range prims { require.NoError(t, pb.Append(ctx, prim)) }

	assert.Equal(t, 1, pb.Lost())
	assert.Equal(t, 2, pb.Batches())
	assert.Equal(t, 1, pb.Len())
	assert.Error(t, pb.Finalize())

	require.NoError(t, pb.Flush(ctx))
	assert.Equal(t, 3, pb.Batches())
	assert.Equal(t, 0, pb.Len())
	assert.NoError(t, pb.Finalize())
	assert.Equal(t, 0, pb.Result().NumAborted)
}
