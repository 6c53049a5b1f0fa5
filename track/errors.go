package track

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when a simulation is set up with
	// impossible parameters.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrSlotsExhausted is returned when a track needs a slot but none are
	// free.
	ErrSlotsExhausted = errors.New("track slots exhausted")
	// ErrQueueOverflow is returned when more initializers are pushed than
	// a queue can hold.
	ErrQueueOverflow = errors.New("initializer queue overflow")
	// ErrSlotOccupied is returned when activating an occupied slot.
	ErrSlotOccupied = errors.New("track slot is occupied")
	// ErrSlotEmpty is returned when releasing an empty slot.
	ErrSlotEmpty = errors.New("track slot is empty")
)

// CapacityError reports a fixed-capacity container which could not accept a
// request. It wraps one of the sentinel errors of this package.
type CapacityError struct {
	Err      error
	Capacity int
	Size     int
	Request  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf(
		"%s: requested %d with %d of %d in use (%d lost)",
		e.Err, e.Request, e.Size, e.Capacity, e.Lost(),
	)
}

func (e *CapacityError) Unwrap() error { return e.Err }

// Lost returns the number of requested items which did not fit.
func (e *CapacityError) Lost() int {
	lost := e.Size + e.Request - e.Capacity
	if lost < 0 { return 0 }
	return lost
}

// InvalidConfig returns an error wrapping ErrInvalidConfig.
func InvalidConfig(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
