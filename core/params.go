// Package core holds the shared, immutable simulation parameters, the
// per-stream track state, and the step actions which advance that state.
package core

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/phil-mansfield/gotrack/action"
	"github.com/phil-mansfield/gotrack/field"
	"github.com/phil-mansfield/gotrack/geom"
	"github.com/phil-mansfield/gotrack/phys"
	"github.com/phil-mansfield/gotrack/track"
)

// ErrInvalidConfig is returned for parameters which can never be run.
var ErrInvalidConfig = track.ErrInvalidConfig

// LoopingInput controls when tracks which keep circling in a field are
// killed.
type LoopingInput struct {
	// Looping steps allowed for tracks below ImportantEnergy.
	Threshold int
	// Looping steps allowed for tracks at or above ImportantEnergy.
	ImportantThreshold int
	// MeV
	ImportantEnergy float64
}

// SimInput holds per-track limits.
type SimInput struct {
	// Tracks which take more steps than this are killed and counted as
	// aborted.
	MaxSteps int
	Looping  LoopingInput
}

// InitInput sizes the initializer queue.
type InitInput struct {
	Capacity   int
	MaxEvents  int
	TrackOrder track.TrackOrder
}

// ParamsInput is everything needed to build Params.
type ParamsInput struct {
	Geometry *geom.Geometry
	Physics  *phys.Physics
	// Field may be nil, in which case every track moves in straight lines.
	Field *field.Params

	Sim  SimInput
	Init InitInput

	Seed       uint64
	MaxStreams int
	// Number of goroutines used to run an action over the slots of a
	// single stream.
	KernelThreads int

	Logger *slog.Logger
}

const (
	defaultMaxSteps           = math.MaxInt32
	defaultLoopingThreshold   = 10
	defaultImportantThreshold = 100
	defaultImportantEnergy    = 250
)

// Params are the shared, read-only parameters of a simulation. They may be
// extended with actions and auxiliary data until the first State is
// created, after which they are frozen.
type Params struct {
	geo       *geom.Geometry
	physics   *phys.Physics
	particles *phys.Particles
	field     *field.Params

	sim  SimInput
	init InitInput

	seed          uint64
	maxStreams    int
	kernelThreads int
	logger        *slog.Logger

	actions *action.Registry
	aux     *AuxRegistry

	ids coreActionIds
}

// NewParams validates its input and registers the core step actions.
func NewParams(in ParamsInput) (*Params, error) {
	if err := checkParamsInput(&in); err != nil { return nil, err }

	p := &Params{
		geo: in.Geometry, physics: in.Physics,
		particles: in.Physics.Particles(), field: in.Field,
		sim: in.Sim, init: in.Init,
		seed: in.Seed, maxStreams: in.MaxStreams,
		kernelThreads: in.KernelThreads, logger: in.Logger,
		actions: action.NewRegistry(), aux: NewAuxRegistry(),
	}
	if err := p.registerActions(); err != nil { return nil, err }

	return p, nil
}

func checkParamsInput(in *ParamsInput) error {
	if in.Sim.MaxSteps == 0 { in.Sim.MaxSteps = defaultMaxSteps }
	loop := &in.Sim.Looping
	if loop.Threshold == 0 { loop.Threshold = defaultLoopingThreshold }
	if loop.ImportantThreshold == 0 {
		loop.ImportantThreshold = defaultImportantThreshold
	}
	if loop.ImportantEnergy == 0 { loop.ImportantEnergy = defaultImportantEnergy }
	if in.KernelThreads == 0 { in.KernelThreads = 1 }
	if in.Logger == nil { in.Logger = slog.Default() }

	switch {
	case in.Geometry == nil:
		return track.InvalidConfig("no geometry was given")
	case in.Physics == nil:
		return track.InvalidConfig("no physics was given")
	case in.Geometry.NumMaterials() > in.Physics.NumMaterials():
		return track.InvalidConfig(
			"geometry uses %d materials but physics defines %d",
			in.Geometry.NumMaterials(), in.Physics.NumMaterials(),
		)
	case in.Sim.MaxSteps < 0:
		return track.InvalidConfig(
			"MaxSteps per track must be positive, got %d", in.Sim.MaxSteps,
		)
	case loop.Threshold < 0 || loop.ImportantThreshold < 0 ||
		loop.ImportantEnergy < 0:
		return track.InvalidConfig("looping thresholds must be positive")
	case in.Init.Capacity <= 0:
		return track.InvalidConfig(
			"initializer capacity must be positive, got %d", in.Init.Capacity,
		)
	case in.Init.MaxEvents <= 0:
		return track.InvalidConfig(
			"MaxEvents must be positive, got %d", in.Init.MaxEvents,
		)
	case in.Init.TrackOrder < 0 || in.Init.TrackOrder >= track.EndTrackOrder:
		return track.InvalidConfig("unknown track order %d", in.Init.TrackOrder)
	case in.MaxStreams <= 0:
		return track.InvalidConfig(
			"MaxStreams must be positive, got %d", in.MaxStreams,
		)
	case in.KernelThreads < 0:
		return track.InvalidConfig(
			"KernelThreads must be positive, got %d", in.KernelThreads,
		)
	}
	return nil
}

func (p *Params) Geometry() *geom.Geometry   { return p.geo }
func (p *Params) Physics() *phys.Physics     { return p.physics }
func (p *Params) Particles() *phys.Particles { return p.particles }
func (p *Params) Field() *field.Params       { return p.field }
func (p *Params) Sim() SimInput              { return p.sim }
func (p *Params) Init() InitInput            { return p.init }
func (p *Params) Seed() uint64               { return p.seed }
func (p *Params) MaxStreams() int            { return p.maxStreams }
func (p *Params) KernelThreads() int         { return p.kernelThreads }
func (p *Params) Logger() *slog.Logger       { return p.logger }

// Actions returns the registry of core step actions. Other packages may
// insert actions into it until the first State is created.
func (p *Params) Actions() *action.Registry { return p.actions }

// Aux returns the registry of auxiliary data.
func (p *Params) Aux() *AuxRegistry { return p.aux }

// Frozen returns true once a State has been created.
func (p *Params) Frozen() bool { return p.actions.Frozen() }

// freeze is called on the creation of the first state.
func (p *Params) freeze() {
	p.actions.Freeze()
	p.aux.Freeze()
}

// Flushers returns the auxiliary data which hold deferred work.
func (p *Params) Flushers() []Flusher {
	out := []Flusher{}
	for _, a := range p.aux.All() {
		if f, ok := a.(Flusher); ok { out = append(out, f) }
	}
	return out
}

func (p *Params) String() string {
	return fmt.Sprintf(
		"Params{cells: %d, particles: %d, streams: %d, capacity: %d, order: %s}",
		p.geo.NumCells(), p.particles.Size(), p.maxStreams,
		p.init.Capacity, p.init.TrackOrder,
	)
}
