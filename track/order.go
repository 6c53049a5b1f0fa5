package track

import (
	"fmt"
	"sort"
	"strings"

	"github.com/phil-mansfield/gotrack/phys"
)

// TrackOrder controls how a batch of initializers is assigned to empty
// slots.
type TrackOrder int8

const (
	// OrderNone keeps initializers in insertion order.
	OrderNone TrackOrder = iota
	// OrderCharge groups negative, neutral, then positive particles.
	OrderCharge
	// OrderSpecies groups particles by ascending particle id.
	OrderSpecies
	EndTrackOrder
)

var trackOrderNames = []string{"none", "charge", "species"}

func (o TrackOrder) String() string {
	if o < 0 || o >= EndTrackOrder { return "unknown" }
	return trackOrderNames[o]
}

// ParseTrackOrder converts a case-insensitive name into a TrackOrder.
func ParseTrackOrder(s string) (TrackOrder, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" { return OrderNone, nil }
	for o := OrderNone; o < EndTrackOrder; o++ {
		if trackOrderNames[o] == s { return o, nil }
	}
	return OrderNone, fmt.Errorf(
		"%w: TrackOrder '%s' is not one of [none | charge | species]",
		ErrInvalidConfig, s,
	)
}

// sortBatch reorders a batch of initializers in place. The sort is stable,
// so initializers with equal keys keep their insertion order.
func sortBatch(batch []Initializer, order TrackOrder, particles *phys.Particles) {
	switch order {
	case OrderCharge:
		sort.SliceStable(batch, func(i, j int) bool {
			return particles.Charge(batch[i].Particle) <
				particles.Charge(batch[j].Particle)
		})
	case OrderSpecies:
		sort.SliceStable(batch, func(i, j int) bool {
			return batch[i].Particle < batch[j].Particle
		})
	}
}
