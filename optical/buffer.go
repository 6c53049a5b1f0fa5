package optical

import (
	"errors"

	"github.com/phil-mansfield/gotrack/track"
)

// ErrBufferOverflow is returned when a distribution doesn't fit in a
// Buffer.
var ErrBufferOverflow = errors.New("optical distribution buffer overflow")

// Buffer is a bounded FIFO of distributions which tracks how many of their
// photons have not yet been generated.
type Buffer struct {
	dists []Distribution
	// Index of the first distribution with photons left and the number of
	// its photons which have already been generated.
	head, used int

	numPhotons         int
	distCap, photonCap int
}

// NewBuffer creates a buffer which holds at most distCap distributions and
// photonCap photons.
func NewBuffer(distCap, photonCap int) (*Buffer, error) {
	if distCap <= 0 || photonCap <= 0 {
		return nil, track.InvalidConfig(
			"optical buffer needs positive capacities, got %d distributions "+
				"and %d photons", distCap, photonCap,
		)
	}
	return &Buffer{
		dists: make([]Distribution, 0, distCap),
		distCap: distCap, photonCap: photonCap,
	}, nil
}

// Len returns the number of distributions with photons left to generate.
func (b *Buffer) Len() int { return len(b.dists) - b.head }

// NumPhotons returns the number of photons left to generate.
func (b *Buffer) NumPhotons() int { return b.numPhotons }

// PhotonCapacity returns the largest number of buffered photons.
func (b *Buffer) PhotonCapacity() int { return b.photonCap }

// Push adds a distribution. It fails with a *track.CapacityError wrapping
// ErrBufferOverflow if either the distribution or photon capacity would be
// exceeded. Nothing is dropped silently.
func (b *Buffer) Push(d Distribution) error {
	if b.numPhotons+d.NumPhotons > b.photonCap {
		return &track.CapacityError{
			Err: ErrBufferOverflow, Capacity: b.photonCap,
			Size: b.numPhotons, Request: d.NumPhotons,
		}
	}
	if b.Len() == b.distCap {
		return &track.CapacityError{
			Err: ErrBufferOverflow, Capacity: b.distCap, Size: b.Len(),
			Request: 1,
		}
	}

	if len(b.dists) == cap(b.dists) { b.compact() }
	b.dists = append(b.dists, d)
	b.numPhotons += d.NumPhotons
	return nil
}

// Take generates up to n photons in buffer order, calling fn with the
// distribution and index of each photon. It returns the number of photons
// generated.
func (b *Buffer) Take(n int, fn func(d *Distribution, k int)) int {
	taken := 0
	for taken < n && b.head < len(b.dists) {
		d := &b.dists[b.head]
		for ; b.used < d.NumPhotons && taken < n; b.used++ {
			fn(d, b.used)
			taken++
		}
		if b.used == d.NumPhotons {
			b.head++
			b.used = 0
		}
	}
	b.numPhotons -= taken
	if b.head == len(b.dists) { b.dists, b.head = b.dists[:0], 0 }
	return taken
}

func (b *Buffer) compact() {
	n := copy(b.dists, b.dists[b.head:])
	b.dists = b.dists[:n]
	b.head = 0
}

// Clear drops every buffered distribution and returns the number of
// photons which were never generated.
func (b *Buffer) Clear() int {
	lost := b.numPhotons
	b.dists, b.head, b.used, b.numPhotons = b.dists[:0], 0, 0, 0
	return lost
}
