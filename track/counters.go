package track

import (
	"fmt"
)

// Counters are the aggregate track counts of one step iteration.
type Counters struct {
	// Empty slots after initialization.
	NumVacancies int
	// Occupied slots after initialization.
	NumActive int
	// Occupied slots after cleanup.
	NumAlive int
	// Queued initializers after the iteration.
	NumInitializers int
	// Initializers created this iteration from primaries and secondaries.
	NumGenerated int
	// Secondaries produced this iteration.
	NumSecondaries int
	// Tracks killed before finishing, accumulated since the last reset.
	NumAborted int
}

// BeginStep clears the per-iteration counters.
func (c *Counters) BeginStep() {
	c.NumGenerated = 0
	c.NumSecondaries = 0
}

// Check panics if the counters are inconsistent. Corrupted counters mean
// the stepping loop itself is broken, so they are never recovered from.
func (c *Counters) Check(capacity int) {
	switch {
	case c.NumVacancies < 0, c.NumActive < 0, c.NumAlive < 0,
		c.NumInitializers < 0, c.NumGenerated < 0, c.NumSecondaries < 0,
		c.NumAborted < 0:
		panic(fmt.Sprintf("Negative track counter: %+v", *c))
	case c.NumActive+c.NumVacancies != capacity:
		panic(fmt.Sprintf(
			"Active and vacant slots don't sum to capacity %d: %+v",
			capacity, *c,
		))
	case c.NumAlive > c.NumActive:
		panic(fmt.Sprintf("More alive than active tracks: %+v", *c))
	}
}
