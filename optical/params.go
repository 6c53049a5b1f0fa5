package optical

import (
	"log/slog"
	"math"

	"github.com/phil-mansfield/gotrack/action"
	"github.com/phil-mansfield/gotrack/core"
	"github.com/phil-mansfield/gotrack/geom"
	"github.com/phil-mansfield/gotrack/track"
)

const (
	DefaultMaxStepIters = 1024
	// 3 eV
	DefaultPhotonEnergy = 3e-6

	generateSalt  = 0x6f70746963616c31
	transportSalt = 0x6f70746963616c32
)

// ParamsInput configures the optical loop.
type ParamsInput struct {
	// Absorption length (cm) of photons in each material. Zero and +Inf
	// both mean photons are never absorbed.
	AbsorptionLength []float64
	// Photons emitted per MeV deposited by charged tracks.
	YieldPerMeV float64
	// MeV
	PhotonEnergy float64

	NumTrackSlots       int
	InitializerCapacity int
	// Largest number of buffered photons and distributions.
	BufferCapacity       int
	DistributionCapacity int
	// Buffered photon count which triggers a flush.
	AutoFlush int
	// Largest number of optical iterations in a single flush.
	MaxStepIters int
}

// Params are the shared, read-only parameters of the optical loop.
type Params struct {
	geo    *geom.Geometry
	absLen []float64
	in     ParamsInput
	seed   uint64
	logger *slog.Logger

	actions *action.Registry
}

// NewParams validates the optical configuration against the core params
// and registers the optical step actions.
func NewParams(cp *core.Params, in ParamsInput) (*Params, error) {
	if in.PhotonEnergy == 0 { in.PhotonEnergy = DefaultPhotonEnergy }
	if in.MaxStepIters == 0 { in.MaxStepIters = DefaultMaxStepIters }
	if in.DistributionCapacity == 0 {
		in.DistributionCapacity = in.BufferCapacity
	}
	if in.AutoFlush == 0 { in.AutoFlush = in.BufferCapacity }

	geo := cp.Geometry()
	switch {
	case in.NumTrackSlots <= 0:
		return nil, track.InvalidConfig(
			"optical NumTrackSlots must be positive, got %d", in.NumTrackSlots,
		)
	case in.InitializerCapacity <= 0:
		return nil, track.InvalidConfig(
			"optical InitializerCapacity must be positive, got %d",
			in.InitializerCapacity,
		)
	case in.BufferCapacity <= 0:
		return nil, track.InvalidConfig(
			"optical BufferCapacity must be positive, got %d", in.BufferCapacity,
		)
	case in.AutoFlush < 0 || in.AutoFlush > in.BufferCapacity:
		return nil, track.InvalidConfig(
			"optical AutoFlush must be in [1, %d], got %d",
			in.BufferCapacity, in.AutoFlush,
		)
	case in.MaxStepIters < 0:
		return nil, track.InvalidConfig(
			"optical MaxStepIters must be positive, got %d", in.MaxStepIters,
		)
	case in.YieldPerMeV < 0 || in.PhotonEnergy < 0:
		return nil, track.InvalidConfig("optical yield and energy must be positive")
	case len(in.AbsorptionLength) < geo.NumMaterials():
		return nil, track.InvalidConfig(
			"%d optical absorption lengths given for %d materials",
			len(in.AbsorptionLength), geo.NumMaterials(),
		)
	}

	p := &Params{
		geo: geo, in: in, seed: cp.Seed(), logger: cp.Logger(),
		absLen:  make([]float64, len(in.AbsorptionLength)),
		actions: action.NewRegistry(),
	}
	for i, l := range in.AbsorptionLength {
		if l < 0 || math.IsNaN(l) {
			return nil, track.InvalidConfig(
				"material %d has negative absorption length %g", i, l,
			)
		}
		if l == 0 { l = math.Inf(1) }
		p.absLen[i] = l
	}

	if err := p.registerActions(); err != nil { return nil, err }
	p.actions.Freeze()
	return p, nil
}

func (p *Params) Geometry() *geom.Geometry  { return p.geo }
func (p *Params) Input() ParamsInput        { return p.in }
func (p *Params) Actions() *action.Registry { return p.actions }

// AbsorptionLength returns the absorption length of a material in cm.
func (p *Params) AbsorptionLength(mat int) float64 { return p.absLen[mat] }
