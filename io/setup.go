package io

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phil-mansfield/gotrack/core"
	"github.com/phil-mansfield/gotrack/field"
	"github.com/phil-mansfield/gotrack/geom"
	"github.com/phil-mansfield/gotrack/optical"
	"github.com/phil-mansfield/gotrack/phys"
)

// Setup holds everything built from a configuration file.
type Setup struct {
	Params    *core.Params
	Collector *optical.Collector
}

// Particles returns the particle table used by every configuration.
func Particles() (*phys.Particles, error) {
	return phys.NewParticles(phys.DefaultParticles())
}

// NewSetup builds the shared core parameters described by a checked
// configuration. maxEvents is the number of events which will be run.
func (wrap *TransportWrapper) NewSetup(
	particles *phys.Particles, maxEvents int, logger *slog.Logger,
) (*Setup, error) {
	tc, gc := &wrap.Transport, &wrap.Geometry
	fc, oc := &wrap.Field, &wrap.Optical

	geo, err := geom.NewGeometry(
		mgl64.Vec3{gc.OriginX, gc.OriginY, gc.OriginZ},
		[3]int{gc.CellsX, gc.CellsY, gc.CellsZ}, gc.CellWidth, []int{0},
	)
	if err != nil { return nil, err }
	dets, err := gc.Detectors()
	if err != nil { return nil, err }
	for _, d := range dets { geo.SetDetector(geo.Cell(d[0], d[1], d[2])) }

	physics, err := phys.NewPhysics(phys.PhysicsInput{
		Particles: particles,
		Materials: []phys.Material{{gc.Material, gc.Density}},
	})
	if err != nil { return nil, err }

	var fp *field.Params
	if fc.Enabled() {
		fp, err = field.NewParams(field.Input{
			Field:       mgl64.Vec3{fc.Bx, fc.By, fc.Bz},
			MaxAngle:    fc.MaxAngle,
			MaxSubsteps: fc.MaxSubsteps,
		})
		if err != nil { return nil, err }
	}

	if maxEvents < 1 { maxEvents = 1 }
	p, err := core.NewParams(core.ParamsInput{
		Geometry: geo, Physics: physics, Field: fp,
		Sim: core.SimInput{MaxSteps: tc.MaxStepsPerTrack},
		Init: core.InitInput{
			Capacity: tc.InitializerCapacity, MaxEvents: maxEvents,
			TrackOrder: tc.Order(),
		},
		Seed:          uint64(tc.Seed),
		MaxStreams:    tc.Streams,
		KernelThreads: tc.KernelThreads,
		Logger:        logger,
	})
	if err != nil { return nil, err }

	setup := &Setup{Params: p}
	if !oc.Enabled { return setup, nil }

	setup.Collector, err = optical.NewCollector(p, optical.ParamsInput{
		AbsorptionLength:    []float64{oc.AbsorptionLength},
		YieldPerMeV:         oc.YieldPerMeV,
		NumTrackSlots:       oc.NumTrackSlots,
		InitializerCapacity: oc.InitializerCapacity,
		BufferCapacity:      oc.BufferCapacity,
		AutoFlush:           oc.AutoFlush,
		MaxStepIters:        oc.MaxStepIters,
	})
	if err != nil { return nil, err }
	return setup, nil
}
