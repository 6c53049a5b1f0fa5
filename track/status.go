package track

// Status is the position of a track in its per-step life cycle.
type Status int8

const (
	// Inactive slots hold no track.
	Inactive Status = iota
	// Alive tracks will be stepped.
	Alive
	// Boundary tracks are about to cross into a new cell.
	Boundary
	// Interacting tracks are about to undergo a discrete interaction.
	Interacting
	// Killed tracks will be removed during cleanup.
	Killed
	// Errored tracks hit an invalid state and will be removed during cleanup.
	Errored
)

var statusNames = []string{
	"inactive", "alive", "boundary", "interacting", "killed", "errored",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) { return "unknown" }
	return statusNames[s]
}

// Moving returns true if the track is still being transported.
func (s Status) Moving() bool {
	return s == Alive || s == Boundary || s == Interacting
}

// Dead returns true if the track is waiting to be cleaned up.
func (s Status) Dead() bool { return s == Killed || s == Errored }

// Limit is the process which limited the length of a track's step.
type Limit int8

const (
	NoLimit Limit = iota
	// GeoLimit means the step ended on a cell boundary.
	GeoLimit
	// DiscreteLimit means the step ended in a discrete interaction.
	DiscreteLimit
	// RangeLimit means the track lost all its energy along the step.
	RangeLimit
	// FieldLimit means the field propagator ran out of substeps.
	FieldLimit
)

var limitNames = []string{"none", "geo", "discrete", "range", "field"}

func (l Limit) String() string {
	if l < 0 || int(l) >= len(limitNames) { return "unknown" }
	return limitNames[l]
}
