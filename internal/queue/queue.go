// Package queue implements the FIFO work list of the solver.
package queue

import "errors"

// Queue is a FIFO queue stored in a ring buffer that doubles when full. The
// zero value is an empty queue.
type Queue[E any] struct {
	buf  []E
	head int
	size int
}

func (q *Queue[E]) Push(e E) {
	if q.size == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.size)%len(q.buf)] = e
	q.size++
}

func (q *Queue[E]) grow() {
	buf := make([]E, max(8, 2*len(q.buf)))
	n := copy(buf, q.buf[q.head:])
	copy(buf[n:], q.buf[:q.head])
	q.buf, q.head = buf, 0
}

func (q *Queue[E]) Empty() bool {
	return q.size == 0
}

func (q *Queue[E]) Len() int {
	return q.size
}

var ErrEmpty = errors.New("Queue is empty")

func (q *Queue[E]) Pop() E {
	if q.Empty() {
		panic(ErrEmpty)
	}

	var zero E
	e := q.buf[q.head]
	// Release the reference for the garbage collector.
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return e
}
