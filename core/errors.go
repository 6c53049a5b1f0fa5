package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phil-mansfield/gotrack/track"
)

// KernelError is an error raised while an action processed a single slot.
type KernelError struct {
	Action string
	Stream track.StreamId
	Slot   track.TrackSlotId
	Track  track.TrackId
	Event  track.EventId
	Err    error
}

func (e *KernelError) Error() string {
	return fmt.Sprintf(
		"action '%s' failed on stream %d, slot %d (track %d of event %d): %s",
		e.Action, e.Stream, e.Slot, e.Track, e.Event, e.Err,
	)
}

func (e *KernelError) Unwrap() error { return e.Err }

// MultiErrorHandler collects errors from concurrent workers. It is safe to
// use from multiple goroutines.
type MultiErrorHandler struct {
	mu   sync.Mutex
	errs []error
}

// Add records an error. nil errors are ignored.
func (h *MultiErrorHandler) Add(err error) {
	if err == nil { return }
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

// Len returns the number of recorded errors.
func (h *MultiErrorHandler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.errs)
}

// Errors returns a copy of every recorded error.
func (h *MultiErrorHandler) Errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

// Result logs every recorded error and returns the first one, or nil if
// there were none.
func (h *MultiErrorHandler) Result(logger *slog.Logger) error {
	errs := h.Errors()
	if len(errs) == 0 { return nil }
	for i, err := range errs { logError(logger, i, err) }
	return errs[0]
}

func logError(logger *slog.Logger, i int, err error) {
	var kerr *KernelError
	if errors.As(err, &kerr) {
		logger.Error("kernel error",
			"index", i, "action", kerr.Action, "stream", kerr.Stream,
			"slot", kerr.Slot, "track", kerr.Track, "event", kerr.Event,
			"error", kerr.Err)
		return
	}
	logger.Error("error", "index", i, "error", err)
}
