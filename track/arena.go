package track

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/phil-mansfield/gotrack/geom"
	"github.com/phil-mansfield/gotrack/phys"
	"github.com/phil-mansfield/gotrack/rand"
)

// Arena is fixed-capacity structure-of-arrays storage for tracks. Each
// exported slice is one column with a row for every TrackSlotId. Columns are
// allocated once by NewArena and are never resized.
//
// Occupancy is tracked by a bitset which is separate from the track data, so
// a slot's contents say nothing about whether it holds a track.
type Arena struct {
	// Particle state
	Particle []phys.ParticleId
	Energy   []float64

	// Geometry state
	Position  []mgl64.Vec3
	Direction []mgl64.Vec3
	Cell      []geom.CellId
	Next      []geom.CellId

	// Pre-step point
	PrePosition []mgl64.Vec3
	PreTime     []float64
	PreSpeed    []float64

	// Sim state
	Time       []float64
	Weight     []float64
	Rng        []rand.Stream
	Status     []Status
	NumSteps   []int32
	Track      []TrackId
	Parent     []TrackId
	Primary    []PrimaryId
	Event      []EventId
	StepLength []float64
	Limit      []Limit
	// Remaining number of interaction lengths until a discrete interaction.
	Mfp           []float64
	EnergyDeposit []float64
	LoopingSteps  []int32
	Aborted       []bool

	occupied *bitset.BitSet
	size     int
}

// NewArena allocates an arena with the given number of slots.
func NewArena(capacity int) (*Arena, error) {
	if capacity <= 0 {
		return nil, InvalidConfig("arena needs a positive capacity, got %d", capacity)
	}

	a := &Arena{}
	a.Particle = make([]phys.ParticleId, capacity)
	a.Energy = make([]float64, capacity)
	a.Position = make([]mgl64.Vec3, capacity)
	a.Direction = make([]mgl64.Vec3, capacity)
	a.Cell = make([]geom.CellId, capacity)
	a.Next = make([]geom.CellId, capacity)
	a.PrePosition = make([]mgl64.Vec3, capacity)
	a.PreTime = make([]float64, capacity)
	a.PreSpeed = make([]float64, capacity)
	a.Time = make([]float64, capacity)
	a.Weight = make([]float64, capacity)
	a.Rng = make([]rand.Stream, capacity)
	a.Status = make([]Status, capacity)
	a.NumSteps = make([]int32, capacity)
	a.Track = make([]TrackId, capacity)
	a.Parent = make([]TrackId, capacity)
	a.Primary = make([]PrimaryId, capacity)
	a.Event = make([]EventId, capacity)
	a.StepLength = make([]float64, capacity)
	a.Limit = make([]Limit, capacity)
	a.Mfp = make([]float64, capacity)
	a.EnergyDeposit = make([]float64, capacity)
	a.LoopingSteps = make([]int32, capacity)
	a.Aborted = make([]bool, capacity)
	a.occupied = bitset.New(uint(capacity))

	a.Reset()
	return a, nil
}

// Capacity returns the number of slots.
func (a *Arena) Capacity() int { return len(a.Status) }

// Size returns the number of occupied slots.
func (a *Arena) Size() int { return a.size }

// NumVacancies returns the number of empty slots.
func (a *Arena) NumVacancies() int { return a.Capacity() - a.size }

// Occupied returns true if the slot holds a track.
func (a *Arena) Occupied(slot TrackSlotId) bool {
	return a.occupied.Test(uint(slot))
}

// Activate marks an empty slot as occupied.
func (a *Arena) Activate(slot TrackSlotId) error {
	if a.Occupied(slot) { return ErrSlotOccupied }
	a.occupied.Set(uint(slot))
	a.size++
	return nil
}

// Release marks an occupied slot as empty.
func (a *Arena) Release(slot TrackSlotId) error {
	if !a.Occupied(slot) { return ErrSlotEmpty }
	a.occupied.Clear(uint(slot))
	a.size--
	a.Status[slot] = Inactive
	return nil
}

// Claim activates the lowest empty slot.
func (a *Arena) Claim() (TrackSlotId, error) {
	if i, ok := a.occupied.NextClear(0); ok {
		slot := TrackSlotId(i)
		a.Activate(slot)
		return slot, nil
	}
	return NoSlot, &CapacityError{
		Err: ErrSlotsExhausted, Capacity: a.Capacity(), Size: a.size, Request: 1,
	}
}

// Vacancies appends the empty slots to buf in ascending order.
func (a *Arena) Vacancies(buf []TrackSlotId) []TrackSlotId {
	return a.collect(buf, true)
}

// Occupants appends the occupied slots to buf in ascending order.
func (a *Arena) Occupants(buf []TrackSlotId) []TrackSlotId {
	return a.collect(buf, false)
}

func (a *Arena) collect(buf []TrackSlotId, empty bool) []TrackSlotId {
	buf = buf[:0]
	next := a.occupied.NextSet
	if empty { next = a.occupied.NextClear }
	for i, ok := next(0); ok; i, ok = next(i + 1) {
		buf = append(buf, TrackSlotId(i))
	}
	return buf
}

// Reset empties every slot.
func (a *Arena) Reset() {
	a.occupied.ClearAll()
	for i := range a.Status { a.Status[i] = Inactive }
	a.size = 0
}

// Assign copies an initializer into a slot and clears its per-track state.
// The slot's rng stream and cell are left for the caller to set.
func (a *Arena) Assign(slot TrackSlotId, init *Initializer) {
	a.Particle[slot] = init.Particle
	a.Energy[slot] = init.Energy
	a.Position[slot] = init.Position
	a.Direction[slot] = init.Direction
	a.Cell[slot] = geom.Outside
	a.Next[slot] = geom.Outside
	a.Time[slot] = init.Time
	a.Weight[slot] = init.Weight
	a.Status[slot] = Alive
	a.NumSteps[slot] = 0
	a.Track[slot] = init.Track
	a.Parent[slot] = init.Parent
	a.Primary[slot] = init.Primary
	a.Event[slot] = init.Event
	a.StepLength[slot] = 0
	a.Limit[slot] = NoLimit
	a.Mfp[slot] = 0
	a.EnergyDeposit[slot] = 0
	a.LoopingSteps[slot] = 0
	a.Aborted[slot] = false
}

// Kill marks a track as killed. Aborted tracks were stopped before
// transport could finish them.
func (a *Arena) Kill(slot TrackSlotId, aborted bool) {
	a.Status[slot] = Killed
	if aborted { a.Aborted[slot] = true }
}
