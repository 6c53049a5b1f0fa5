package io

import (
	"errors"
	"math"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/gotrack"
	"github.com/phil-mansfield/gotrack/phys"
	"github.com/phil-mansfield/gotrack/track"
)

func writeFile(t *testing.T, name, text string) string {
	fname := path.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(fname, []byte(text), 0644))
	return fname
}

func TestExampleConfig(t *testing.T) {
	fname := writeFile(t, "example.cfg", ExampleTransportFile)
	wrap, err := ReadTransportConfig(fname)
	require.NoError(t, err)

	tc := &wrap.Transport
	assert.Equal(t, 10000, tc.MaxSteps)
	assert.Equal(t, 4096, tc.NumTrackSlots)
	assert.Equal(t, 4*4096, tc.InitializerCapacity)
	assert.Equal(t, 1, tc.Streams)
	assert.Equal(t, track.OrderNone, tc.Order())

	gc := &wrap.Geometry
	assert.Equal(t, -50.0, gc.OriginX)
	assert.Equal(t, 4, gc.CellsZ)
	assert.Equal(t, "water", gc.Material)
	assert.False(t, wrap.Field.Enabled())
	assert.False(t, wrap.Optical.Enabled)
	assert.Equal(t, "json", wrap.Output.Format)
}

const minimalConfig = `[Transport]
Input = primaries.txt
Output = out
MaxSteps = 100
NumTrackSlots = 64

[Geometry]
OriginX = -50
OriginY = -50
OriginZ = -50
CellsX = 4
CellsY = 4
CellsZ = 4
CellWidth = 25
Material = water
Density = 1.0
Detector = 3 3 3
`

func TestConfigDetectors(t *testing.T) {
	text := minimalConfig + "Detector = 0 1 2\n"

	wrap, err := ReadTransportConfig(writeFile(t, "det.cfg", text))
	require.NoError(t, err)

	dets, err := wrap.Geometry.Detectors()
	require.NoError(t, err)
	assert.Equal(t, [][3]int{{3, 3, 3}, {0, 1, 2}}, dets)
}

func TestCheckInit(t *testing.T) {
	valid := func() *TransportWrapper {
		wrap := DefaultTransportWrapper()
		wrap.Transport.Input = "primaries.txt"
		wrap.Transport.Output = "out"
		wrap.Transport.MaxSteps = 10
		wrap.Transport.NumTrackSlots = 16
		wrap.Geometry.CellsX = 1
		wrap.Geometry.CellsY = 1
		wrap.Geometry.CellsZ = 1
		wrap.Geometry.CellWidth = 1
		return wrap
	}
	require.NoError(t, valid().CheckInit())

	table := []func(w *TransportWrapper){
		func(w *TransportWrapper) { w.Transport.Input = "" },
		func(w *TransportWrapper) { w.Transport.Output = "" },
		func(w *TransportWrapper) { w.Transport.MaxSteps = 0 },
		func(w *TransportWrapper) { w.Transport.NumTrackSlots = -1 },
		func(w *TransportWrapper) { w.Transport.Streams = 0 },
		func(w *TransportWrapper) { w.Transport.TrackOrder = "random" },
		func(w *TransportWrapper) { w.Geometry.CellsY = 0 },
		func(w *TransportWrapper) { w.Geometry.CellWidth = 0 },
		func(w *TransportWrapper) { w.Geometry.Detector = []string{"1 1"} },
		func(w *TransportWrapper) { w.Geometry.Detector = []string{"0 0 1"} },
		func(w *TransportWrapper) { w.Output.Format = "xml" },
		func(w *TransportWrapper) {
			w.Optical.Enabled = true
			w.Optical.YieldPerMeV = 10
			w.Optical.AutoFlush = w.Optical.BufferCapacity + 1
		},
		func(w *TransportWrapper) {
			w.Optical.Enabled = true
			w.Optical.YieldPerMeV = 0
		},
	}

	for i, modify := range table {
		wrap := valid()
		modify(wrap)
		if err := wrap.CheckInit(); !errors.Is(err, track.ErrInvalidConfig) {
			t.Errorf("%d) Expected an invalid configuration error, got %v.", i, err)
		}
	}
}

func TestPrimariesFromColumns(t *testing.T) {
	particles, err := Particles()
	require.NoError(t, err)

	cols := [][]float64{
		{0, 2, 0}, {22, 11, -11}, {1, 2, 3},
		{0, 0, 0}, {0, 1, 0}, {0, 0, 2},
		{0, 0, 1}, {0, 0, 0}, {1, 1, 0},
	}
	events, err := PrimariesFromColumns(cols, particles)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Len(t, events[0], 2)
	assert.Len(t, events[1], 0)
	require.Len(t, events[2], 1)

	e := events[2][0]
	assert.Equal(t, particles.Find(11), e.Particle)
	assert.Equal(t, 2.0, e.Energy)
	assert.Equal(t, 1.0, e.Position[1])
	assert.Equal(t, track.EventId(2), e.Event)
	assert.Equal(t, particles.Find(-11), events[0][1].Particle)

	cols[PDGCol][1] = 2212
	_, err = PrimariesFromColumns(cols, particles)
	assert.Error(t, err)
	cols[PDGCol][1] = 11
	cols[EventCol][0] = 0.5
	_, err = PrimariesFromColumns(cols, particles)
	assert.Error(t, err)
	_, err = PrimariesFromColumns(cols[:4], particles)
	assert.Error(t, err)

	// Event ids index the output, so they may not outrun the row count.
	table := []float64{-1, 3, 1e9, math.Inf(1), math.NaN()}
	for _, id := range table {
		cols[EventCol][0] = id
		_, err = PrimariesFromColumns(cols, particles)
		assert.Error(t, err, "event id %g", id)
	}
}

func TestReadPrimaries(t *testing.T) {
	particles, err := phys.NewParticles(phys.DefaultParticles())
	require.NoError(t, err)

	fname := writeFile(t, "primaries.txt", strings.Join([]string{
		"0 22 10 0 0 0 0 0 1",
		"0 11 5 1 0 0 1 0 0",
		"1 22 1 0 0 0 0 1 0",
	}, "\n")+"\n")

	events, err := ReadPrimaries(fname, particles)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Len(t, events[0], 2)
	assert.Len(t, events[1], 1)
	assert.Equal(t, 5.0, events[0][1].Energy)
}

func TestRunSummary(t *testing.T) {
	results := []gotrack.TransporterResult{
		{
			NumStepIters: 4, Alive: []int{3, 2, 1, 0}, Active: []int{3, 3, 2, 1},
			NumSteps: 9, NumTracks: 5, MaxQueued: 2,
		},
		{
			NumStepIters: 2, NumAborted: 5, StepLimited: true, OpticalLost: 7,
			NumSteps: 4, NumTracks: 4, MaxQueued: 6,
		},
	}
	s := NewRunSummary(time.Now(), 2, results, map[string]float64{"pre-step": 0.5})
	assert.Equal(t, 2, s.NumEvents)
	assert.Equal(t, 5, s.NumAborted)
	assert.Equal(t, 7, s.OpticalLost)
	assert.Equal(t, 13, s.NumSteps)
	assert.Equal(t, 9, s.NumTracks)
	assert.Equal(t, 6, s.Events[1].MaxQueued)
	assert.Len(t, s.RunId, 36)

	dir := t.TempDir()
	for _, format := range []string{"json", "yaml"} {
		fname, err := WriteSummary(dir, s, format)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(fname, "."+format))

		read, err := ReadSummary(fname)
		require.NoError(t, err, format)
		assert.Equal(t, s.RunId, read.RunId, format)
		assert.Equal(t, s.Events[0].Alive, read.Events[0].Alive, format)
		assert.True(t, read.Events[1].StepLimited, format)
		assert.Equal(t, 2, read.Events[0].MaxQueued, format)
		assert.Equal(t, 13, read.NumSteps, format)
		assert.Equal(t, 0.5, read.ActionTimes["pre-step"], format)
	}

	_, err := s.Marshal("xml")
	assert.Error(t, err)
}

func TestStepHistory(t *testing.T) {
	steps, alive := StepHistory(&EventSummary{Alive: []int{4, 2, 0}})
	assert.Equal(t, []float64{1, 2, 3}, steps)
	assert.Equal(t, []float64{4, 2, 0}, alive)

	s := &RunSummary{RunId: "run", Events: []EventSummary{{}}}
	assert.Error(t, PlotStepHistory(s, "steps.png"))
}

func TestNewSetup(t *testing.T) {
	text := minimalConfig + `
[Field]
Bz = 1.0

[Optical]
Enabled = true
YieldPerMeV = 10
AbsorptionLength = 30`
	wrap, err := ReadTransportConfig(writeFile(t, "setup.cfg", text))
	require.NoError(t, err)

	particles, err := Particles()
	require.NoError(t, err)
	setup, err := wrap.NewSetup(particles, 3, nil)
	require.NoError(t, err)

	p := setup.Params
	require.NotNil(t, setup.Collector)
	require.NotNil(t, p.Field())
	assert.Equal(t, 1.0, p.Field().Field()[2])
	assert.Equal(t, 3, p.Init().MaxEvents)
	assert.True(t, p.Geometry().Detector(p.Geometry().Cell(3, 3, 3)))
	assert.Len(t, p.Flushers(), 1)
}
