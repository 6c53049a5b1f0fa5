package io

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/gotrack/track"
)

const (
	ExampleTransportFile = `[Transport]

#######################
# Required Parameters #
#######################

# Text file of primaries. Each line gives one primary:
#   event pdg energy x y z dx dy dz
# where energy is in MeV and positions are in cm. Lines starting with '#'
# are ignored.
Input = path/to/primaries.txt
# Directory which result files will be written to.
Output = path/to/output/dir

# The most iterations transport of a single event may take. Tracks left
# over when this is reached are killed and counted as aborted.
MaxSteps = 10000

# Number of track slots in each stream. Larger arenas mean fewer, larger
# iterations.
NumTrackSlots = 4096

#######################
# Optional Parameters #
#######################

# Capacity of the initializer queue of each stream. Default is
# 4 * NumTrackSlots.
# InitializerCapacity = 16384

# Number of streams run in parallel, each with its own arena. Default is 1.
# Streams = 4

# Threads used by each stream when stepping its arena. Default is 1.
# KernelThreads = 1

# Default is 0.
# Seed = 12345

# The order in which queued tracks are moved into empty slots. One of
# [ none | charge | species ]. Default is none.
# TrackOrder = none

# The most steps a single track may take before it is killed. Default is
# unlimited.
# MaxStepsPerTrack = 100000

# Run one empty iteration in each stream before transport.
# WarmUp = true

# Output files which are useful for profiling and debugging. Generally, there
# isn't a reason to use these unless something goes wrong.
# ProfileFile = prof.out
# LogFile = log.out

[Geometry]

# The world is a grid of cubic cells. Origin is the lower corner in cm.
OriginX = -50
OriginY = -50
OriginZ = -50
CellsX = 4
CellsY = 4
CellsZ = 4
CellWidth = 25

# Name and density (g/cm^3) of the material filling the world.
Material = water
Density = 1.0

# Cells which count optical photons. One line per cell, giving its grid
# coordinates.
# Detector = 3 3 3
# Detector = 0 0 0

[Field]

# Uniform magnetic field in tesla. Default is no field.
# Bx = 0
# By = 0
# Bz = 1.0

# Largest angle a track may bend through in one substep. Default is 0.2.
# MaxAngle = 0.2
# MaxSubsteps = 100

[Optical]

# Optical photon tracking is off unless Enabled is set.
# Enabled = true

# Photons emitted per MeV deposited by charged tracks.
# YieldPerMeV = 100
# Absorption length in cm. Default is no absorption.
# AbsorptionLength = 50

# NumTrackSlots = 1024
# InitializerCapacity = 4096
# BufferCapacity = 1000000
# AutoFlush = 65536
# MaxStepIters = 1024

[Output]

# Format of the result file. One of [ json | yaml ]. Default is json.
# Format = json

# Record the track counts and wall time of every iteration.
# StoreTrackCounts = true
# StoreStepTimes = true

# Record the total time spent in each step action. This synchronizes the
# stepping loop after every action, so it's slower.
# ActionTimes = true

# Plot the track count history of each event. Requires python with
# matplotlib.
# PlotFile = steps.png`
)

type SharedConfig struct {
	// Required
	Input, Output string
	// Optional
	LogFile, ProfileFile string
}

func (con *SharedConfig) ValidInput() bool {
	return con.Input != ""
}
func (con *SharedConfig) ValidOutput() bool {
	return con.Output != ""
}
func (con *SharedConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *SharedConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}

type TransportConfig struct {
	SharedConfig
	// Required
	MaxSteps, NumTrackSlots int

	// Optional
	InitializerCapacity, Streams, KernelThreads int
	MaxStepsPerTrack                            int
	Seed                                        int64
	TrackOrder                                  string
	WarmUp                                      bool
}

func (con *TransportConfig) ValidMaxSteps() bool {
	return con.MaxSteps > 0
}
func (con *TransportConfig) ValidNumTrackSlots() bool {
	return con.NumTrackSlots > 0
}
func (con *TransportConfig) ValidInitializerCapacity() bool {
	return con.InitializerCapacity > 0
}
func (con *TransportConfig) ValidStreams() bool {
	return con.Streams > 0
}
func (con *TransportConfig) ValidKernelThreads() bool {
	return con.KernelThreads > 0
}
func (con *TransportConfig) ValidMaxStepsPerTrack() bool {
	return con.MaxStepsPerTrack >= 0
}
func (con *TransportConfig) ValidTrackOrder() bool {
	_, err := track.ParseTrackOrder(con.TrackOrder)
	return err == nil
}

// Order returns the parsed TrackOrder. It must only be called if
// ValidTrackOrder is true.
func (con *TransportConfig) Order() track.TrackOrder {
	order, _ := track.ParseTrackOrder(con.TrackOrder)
	return order
}

type GeometryConfig struct {
	// Required
	OriginX, OriginY, OriginZ float64
	CellsX, CellsY, CellsZ    int
	CellWidth                 float64
	Density                   float64

	// Optional
	Material string
	Detector []string
}

func (con *GeometryConfig) ValidCells() bool {
	return con.CellsX > 0 && con.CellsY > 0 && con.CellsZ > 0
}
func (con *GeometryConfig) ValidCellWidth() bool {
	return con.CellWidth > 0
}
func (con *GeometryConfig) ValidDensity() bool {
	return con.Density >= 0
}

// Detectors parses the grid coordinates of every detector cell.
func (con *GeometryConfig) Detectors() ([][3]int, error) {
	out := [][3]int{}
	for _, line := range con.Detector {
		tok := strings.Fields(line)
		if len(tok) != 3 {
			return nil, fmt.Errorf(
				"Detector '%s' must give exactly three grid coordinates.", line,
			)
		}

		var idx [3]int
		for i := range tok {
			n, err := strconv.Atoi(tok[i])
			if err != nil {
				return nil, fmt.Errorf("Detector '%s': %s", line, err.Error())
			}
			idx[i] = n
		}
		if idx[0] < 0 || idx[0] >= con.CellsX ||
			idx[1] < 0 || idx[1] >= con.CellsY ||
			idx[2] < 0 || idx[2] >= con.CellsZ {
			return nil, fmt.Errorf("Detector '%s' is outside the grid.", line)
		}
		out = append(out, idx)
	}
	return out, nil
}

type FieldConfig struct {
	// Optional
	Bx, By, Bz  float64
	MaxAngle    float64
	MaxSubsteps int
}

func (con *FieldConfig) ValidMaxAngle() bool {
	return con.MaxAngle > 0
}
func (con *FieldConfig) ValidMaxSubsteps() bool {
	return con.MaxSubsteps > 0
}

// Enabled returns true if the field is nonzero.
func (con *FieldConfig) Enabled() bool {
	return con.Bx != 0 || con.By != 0 || con.Bz != 0
}

type OpticalConfig struct {
	// Optional
	Enabled                                 bool
	YieldPerMeV, AbsorptionLength           float64
	NumTrackSlots, InitializerCapacity      int
	BufferCapacity, AutoFlush, MaxStepIters int
}

func (con *OpticalConfig) ValidYieldPerMeV() bool {
	return con.YieldPerMeV > 0
}
func (con *OpticalConfig) ValidAbsorptionLength() bool {
	return con.AbsorptionLength >= 0
}
func (con *OpticalConfig) ValidNumTrackSlots() bool {
	return con.NumTrackSlots > 0
}
func (con *OpticalConfig) ValidBufferCapacity() bool {
	return con.BufferCapacity > 0
}
func (con *OpticalConfig) ValidAutoFlush() bool {
	return con.AutoFlush > 0 && con.AutoFlush <= con.BufferCapacity
}

type OutputConfig struct {
	// Optional
	Format                                        string
	StoreTrackCounts, StoreStepTimes, ActionTimes bool
	PlotFile                                      string
}

func (con *OutputConfig) ValidFormat() bool {
	switch strings.ToLower(con.Format) {
	case "json", "yaml":
		return true
	}
	return false
}
func (con *OutputConfig) ValidPlotFile() bool {
	return con.PlotFile != ""
}

type TransportWrapper struct {
	Transport TransportConfig
	Geometry  GeometryConfig
	Field     FieldConfig
	Optical   OpticalConfig
	Output    OutputConfig
}

func DefaultTransportWrapper() *TransportWrapper {
	wrap := &TransportWrapper{}
	wrap.Transport.Streams = 1
	wrap.Transport.KernelThreads = 1
	wrap.Transport.TrackOrder = "none"
	wrap.Geometry.Material = "vacuum"
	wrap.Field.MaxAngle = 0.2
	wrap.Field.MaxSubsteps = 100
	wrap.Optical.NumTrackSlots = 1024
	wrap.Optical.InitializerCapacity = 4096
	wrap.Optical.BufferCapacity = 1 << 20
	wrap.Optical.AutoFlush = 1 << 16
	wrap.Optical.MaxStepIters = 1024
	wrap.Output.Format = "json"
	return wrap
}

// ReadTransportConfig reads a configuration file on top of the defaults and
// checks it.
func ReadTransportConfig(fname string) (*TransportWrapper, error) {
	wrap := DefaultTransportWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, err
	}
	if err := wrap.CheckInit(); err != nil { return nil, err }
	return wrap, nil
}

// CheckInit fills in defaults which depend on other values and returns an
// error describing the first invalid value.
func (wrap *TransportWrapper) CheckInit() error {
	tc, gc := &wrap.Transport, &wrap.Geometry
	fc, oc, out := &wrap.Field, &wrap.Optical, &wrap.Output

	if tc.InitializerCapacity == 0 {
		tc.InitializerCapacity = 4 * tc.NumTrackSlots
	}

	switch {
	case !tc.ValidInput():
		return invalid("Invalid/non-existent 'Input' value.")
	case !tc.ValidOutput():
		return invalid("Invalid/non-existent 'Output' value.")
	case !tc.ValidMaxSteps():
		return invalid("'MaxSteps' must be positive, but is %d.", tc.MaxSteps)
	case !tc.ValidNumTrackSlots():
		return invalid(
			"'NumTrackSlots' must be positive, but is %d.", tc.NumTrackSlots,
		)
	case !tc.ValidInitializerCapacity():
		return invalid("Invalid 'InitializerCapacity' value.")
	case !tc.ValidStreams():
		return invalid("'Streams' must be positive, but is %d.", tc.Streams)
	case !tc.ValidKernelThreads():
		return invalid("Invalid 'KernelThreads' value.")
	case !tc.ValidMaxStepsPerTrack():
		return invalid("Invalid 'MaxStepsPerTrack' value.")
	case !tc.ValidTrackOrder():
		return invalid(
			"'TrackOrder' must be one of [none | charge | species], "+
				"but is '%s'.", tc.TrackOrder,
		)

	case !gc.ValidCells():
		return invalid("'CellsX', 'CellsY', and 'CellsZ' must be positive.")
	case !gc.ValidCellWidth():
		return invalid("'CellWidth' must be positive.")
	case !gc.ValidDensity():
		return invalid("'Density' must not be negative.")

	case !fc.ValidMaxAngle():
		return invalid("'MaxAngle' must be positive.")
	case !fc.ValidMaxSubsteps():
		return invalid("'MaxSubsteps' must be positive.")

	case !out.ValidFormat():
		return invalid(
			"'Format' must be one of [json | yaml], but is '%s'.", out.Format,
		)
	}

	if _, err := gc.Detectors(); err != nil {
		return fmt.Errorf("%w: %s", track.ErrInvalidConfig, err.Error())
	}

	if !oc.Enabled { return nil }
	switch {
	case !oc.ValidYieldPerMeV():
		return invalid("Optical 'YieldPerMeV' must be positive.")
	case !oc.ValidAbsorptionLength():
		return invalid("Optical 'AbsorptionLength' must not be negative.")
	case !oc.ValidNumTrackSlots():
		return invalid("Optical 'NumTrackSlots' must be positive.")
	case !oc.ValidBufferCapacity():
		return invalid("Optical 'BufferCapacity' must be positive.")
	case !oc.ValidAutoFlush():
		return invalid(
			"Optical 'AutoFlush' must be in the range [1, %d], but is %d.",
			oc.BufferCapacity, oc.AutoFlush,
		)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", track.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
