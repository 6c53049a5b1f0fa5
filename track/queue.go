package track

import (
	"github.com/phil-mansfield/gotrack/phys"
)

// Queue is a fixed-capacity FIFO ring buffer of initializers waiting for a
// slot.
type Queue struct {
	buf        []Initializer
	head, size int

	batch     []Initializer
	vacancies []TrackSlotId
}

// NewQueue allocates a queue which can hold capacity initializers.
func NewQueue(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, InvalidConfig(
			"initializer queue needs a positive capacity, got %d", capacity,
		)
	}
	return &Queue{
		buf:   make([]Initializer, capacity),
		batch: make([]Initializer, 0, capacity),
	}, nil
}

// Len returns the number of queued initializers.
func (q *Queue) Len() int { return q.size }

// Capacity returns the largest number of initializers the queue can hold.
func (q *Queue) Capacity() int { return len(q.buf) }

// Free returns the number of initializers which can still be pushed.
func (q *Queue) Free() int { return len(q.buf) - q.size }

func (q *Queue) overflow(request int) error {
	return &CapacityError{
		Err: ErrQueueOverflow, Capacity: len(q.buf), Size: q.size,
		Request: request,
	}
}

// Push appends an initializer to the back of the queue. It fails with a
// *CapacityError wrapping ErrQueueOverflow if the queue is full.
func (q *Queue) Push(init Initializer) error {
	if q.size == len(q.buf) { return q.overflow(1) }
	q.buf[(q.head+q.size)%len(q.buf)] = init
	q.size++
	return nil
}

// PushAll appends every initializer or, if they do not all fit, none of
// them.
func (q *Queue) PushAll(inits []Initializer) error {
	if len(inits) > q.Free() { return q.overflow(len(inits)) }
	for i := range inits {
		q.buf[(q.head+q.size)%len(q.buf)] = inits[i]
		q.size++
	}
	return nil
}

// Peek returns the i-th initializer from the front of the queue.
func (q *Queue) Peek(i int) *Initializer {
	if i < 0 || i >= q.size { panic("Queue index out of range.") }
	return &q.buf[(q.head+i)%len(q.buf)]
}

// Clear drops every queued initializer.
func (q *Queue) Clear() { q.head, q.size = 0, 0 }

// take removes n initializers from the front of the queue and stores them in
// the batch buffer.
func (q *Queue) take(n int) []Initializer {
	q.batch = q.batch[:0]
	for i := 0; i < n; i++ {
		q.batch = append(q.batch, q.buf[(q.head+i)%len(q.buf)])
	}
	q.head = (q.head + n) % len(q.buf)
	q.size -= n
	return q.batch
}

// DrainInto moves as many initializers as there are empty slots from the
// front of the queue into the arena. The drained batch is reordered
// according to order and then assigned to the empty slots in ascending
// order. Initializers which don't fit stay queued.
//
// The filled slots are returned in ascending order. The returned slice is
// reused by the next call.
func (q *Queue) DrainInto(
	a *Arena, order TrackOrder, particles *phys.Particles,
) []TrackSlotId {
	q.vacancies = a.Vacancies(q.vacancies)
	n := q.size
	if len(q.vacancies) < n { n = len(q.vacancies) }

	batch := q.take(n)
	sortBatch(batch, order, particles)

	filled := q.vacancies[:n]
	for i, slot := range filled {
		if err := a.Activate(slot); err != nil {
			panic("Vacant slot was occupied during drain.")
		}
		a.Assign(slot, &batch[i])
	}
	return filled
}
